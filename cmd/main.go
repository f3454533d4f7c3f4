package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/common-nighthawk/go-figure"
	bannercolor "github.com/fatih/color"
	"github.com/forest-guardian/greenness-mosaic/internal/notification"
)

func printBanner() {
	figure1 := figure.NewFigure("Greenness", "isometric1", true)
	figure2 := figure.NewFigure("Mosaic", "isometric1", true)
	bannercolor.Cyan(figure1.String())
	bannercolor.Cyan(figure2.String())
	fmt.Println()
}

func reportPanic(r any) {
	// 3 levels up is usually the panic source
	pc, file, line, ok := runtime.Caller(3)
	location := "Unknown location"
	if ok {
		location = fmt.Sprintf("%s:%d in %s", file, line, runtime.FuncForPC(pc).Name())
	}

	bannercolor.Red("\nPANIC: %v", r)
	bannercolor.Red("Location: %s", location)
	bannercolor.Red("Exiting...")

	errMessage := fmt.Sprintf("Greenness mosaic panic:\n\n%v\n\nLocation: %s\n\nStack trace:\n%s", r, location, debug.Stack())
	if err := notification.SendDiscordErrorNotification(errMessage); err != nil {
		bannercolor.Red("Failed to send notification: %s", err.Error())
	}
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			reportPanic(r)
			os.Exit(2)
		}
	}()

	if err := rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
