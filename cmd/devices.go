package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nagamine-git/way-thumbsense/internal/device"
)

// devicesCmd は入力デバイスの一覧と分類を表示する
var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List input devices and how they are classified",
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := device.ScanDevices()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PATH\tTYPE\tNAME")
		for _, d := range devices {
			typ := d.Type.String()
			if !d.Accessible {
				typ = "(no permission)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", d.Path, typ, d.Name)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if touchpad, err := device.FindTouchpad(""); err == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "\ntouchpad: %s (%s)\n", touchpad.Name, touchpad.Path)
		}
		if keyboard, err := device.FindKeyboard(""); err == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "keyboard: %s (%s)\n", keyboard.Name, keyboard.Path)
		}
		return nil
	},
}
