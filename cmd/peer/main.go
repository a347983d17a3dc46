// Command peer is a headless meeting participant. It publishes file-backed
// camera and microphone tracks and prints what happens in the meeting.
package main

func main() {
	Execute()
}
