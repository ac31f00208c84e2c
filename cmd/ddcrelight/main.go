// ddcrelight - learn a preferred monitor brightness for each ambient light
// level and keep external monitors at it.
//
//	ddcrelight daemon                 Keep monitors at the learned brightness
//	ddcrelight set-brightness <n>     Teach the curve: n% at the current light
//	ddcrelight get                    Print the recommended brightness
//	ddcrelight status                 Show the learned curves
//	ddcrelight log                    Show recently recorded observations
//	ddcrelight monitors               List controllable monitors
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]

	switch cmd {
	case "daemon":
		cmdDaemon()
	case "set-brightness":
		cmdSetBrightness()
	case "get":
		cmdGet()
	case "status":
		cmdStatus()
	case "log":
		cmdLog()
	case "monitors":
		cmdMonitors()
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`ddcrelight - Update monitor brightness intelligently

USAGE:
    ddcrelight <command> [options]

COMMANDS:
    daemon                  Run the brightness daemon
    set-brightness <0-100>  Record the brightness you want at the current light level
    get                     Print the recommended brightness for the current light level
    status                  Show the stable and newest brightness curves
    log                     Show recently recorded observations
    monitors                List detected monitors and their brightness
    help                    Show this help message

OPTIONS:
    -config <path>          Configuration file (default: ~/.config/ddcrelight/config.toml)
    -light <value>          Use this light level instead of reading the sensor (set-brightness, get)
    -n <count>              Number of entries to show (log)

HOW IT LEARNS:
    Every set-brightness call edits the "newest" curve, built on top of the
    "stable" one. Once the newest curve has gone untouched for the promotion
    window (15 minutes by default) it becomes the new stable curve, so a
    burst of experimenting can be undone by simply correcting it in time.

ENVIRONMENT:
    DDCRELIGHT_HISTORY_PATH     Override history.path
    DDCRELIGHT_LOG_LEVEL        Override logging.level
    DDCRELIGHT_SENSOR_BACKEND   Override sensor.backend (iio, serial, sysfs)
    DDCRELIGHT_SERIAL_PORT      Override sensor.serial.port
    DDCRELIGHT_MONITOR_BACKEND  Override monitors.backend (ddcutil, backlight)`)
}
