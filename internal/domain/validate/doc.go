// Package validate gates automation actions against the target
// application's state and window geometry before they reach the
// injector.
package validate
