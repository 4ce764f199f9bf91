// replayctl is the command-line client for the replayd daemon.
package main

func main() {
	Execute()
}
