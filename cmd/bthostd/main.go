// bthostd runs the host stack against a local controller and exposes a
// minimal interactive console: it logs device events and answers
// pairing prompts on stdin.
package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/go-bt/bthost"
	"github.com/go-bt/bthost/gap"
	"github.com/go-bt/bthost/host"
)

func main() {
	app := cli.NewApp()

	app.Name = "bthostd"
	app.Usage = "Bluetooth host stack daemon"
	app.Version = "0.1.0"
	app.Action = run
	app.Flags = []cli.Flag{
		cli.IntFlag{Name: "hci", Value: 0, Usage: "HCI socket device id"},
		cli.StringFlag{Name: "h4-uart", Usage: "H4 UART device path (overrides --hci)"},
		cli.StringFlag{Name: "h4-socket", Usage: "H4 TCP address (overrides --hci)"},
		cli.StringFlag{Name: "bonds", Usage: "bond store file"},
		cli.StringFlag{Name: "name, n", Value: "bthost", Usage: "local device name"},
		cli.UintFlag{Name: "class", Usage: "class of device (24-bit)"},
		cli.BoolFlag{Name: "discoverable", Usage: "enter discoverable mode"},
		cli.BoolFlag{Name: "connectable", Usage: "accept incoming connections"},
		cli.BoolFlag{Name: "scan, s", Usage: "start discovery"},
		cli.BoolFlag{Name: "verbose, v", Usage: "trace logging"},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.Bool("verbose") {
		bthost.SetLogLevelMax()
	}

	opts := []bthost.Option{
		bthost.OptLocalName(c.String("name")),
		bthost.OptErrorHandler(func(err error) {
			fmt.Fprintln(os.Stderr, "transport error:", err)
		}),
	}
	switch {
	case c.String("h4-uart") != "":
		opts = append(opts, bthost.OptTransportH4Uart(c.String("h4-uart")))
	case c.String("h4-socket") != "":
		opts = append(opts, bthost.OptTransportH4Socket(c.String("h4-socket"), 5*time.Second))
	default:
		opts = append(opts, bthost.OptTransportHCISocket(c.Int("hci")))
	}
	if path := c.String("bonds"); path != "" {
		opts = append(opts, bthost.OptBondStorePath(path))
	}
	if class := c.Uint("class"); class != 0 {
		opts = append(opts, bthost.OptDeviceClass(bthost.DeviceClass(class)))
	}

	adapter, err := gap.NewAdapter(opts...)
	if err != nil {
		return err
	}
	if err := adapter.Start(); err != nil {
		return err
	}
	defer adapter.Close()

	srv := host.NewServer(adapter, &consoleSink{})
	defer srv.Close()

	info := srv.GetInfo()
	fmt.Printf("bthostd up: %s (%s, %s)\n", info.Identifier, info.Address, info.Technology)

	srv.SetPairingDelegate(bthost.IOCapKeyboardDisplay, &consoleDelegate{in: bufio.NewReader(os.Stdin)})

	if c.Bool("connectable") {
		if err := srv.SetConnectable(true); err != nil {
			return err
		}
	}
	if c.Bool("discoverable") {
		srv.SetDiscoverable(true, func(err error) {
			if err != nil {
				fmt.Fprintln(os.Stderr, "can't enter discoverable mode:", err)
			}
		})
	}
	if c.Bool("scan") {
		srv.StartDiscovery(func(err error) {
			if err != nil {
				fmt.Fprintln(os.Stderr, "can't start discovery:", err)
			}
		})
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	fmt.Println("shutting down")
	return nil
}

// consoleSink prints host events for the operator.
type consoleSink struct{}

func (consoleSink) OnAdapterStateChanged(diff bthost.AdapterStateDiff) {
	if diff.Discovering != nil {
		fmt.Printf("discovering: %v\n", *diff.Discovering)
	}
	if diff.Discoverable != nil {
		fmt.Printf("discoverable: %v\n", *diff.Discoverable)
	}
	if diff.LocalName != nil {
		fmt.Printf("local name: %s\n", *diff.LocalName)
	}
}

func (consoleSink) OnDeviceUpdated(dev bthost.Device) {
	name := dev.Name
	if name == "" {
		name = "(unnamed)"
	}
	fmt.Printf("device %s %s [%s] %s\n", dev.Identifier, dev.Address, dev.Technology, name)
}

func (consoleSink) OnDeviceRemoved(id string) {
	fmt.Printf("device %s removed\n", id)
}

func (consoleSink) OnNewBondingData(rec bthost.BondingData) {
	fmt.Printf("bonded with %s\n", rec.Identifier)
}

// consoleDelegate resolves pairing interactions on stdin.
type consoleDelegate struct {
	in *bufio.Reader
}

func (d *consoleDelegate) OnPairingRequest(dev bthost.Device, method bthost.PairingMethod, displayed string, respond func(accept bool, passkey string)) {
	switch method {
	case bthost.PairingMethodConsent:
		fmt.Printf("pair with %s (%s)? [y/N] ", dev.Address, dev.Name)
		respond(d.yes(), "")
	case bthost.PairingMethodPasskeyDisplay:
		fmt.Printf("passkey for %s: %s\n", dev.Address, displayed)
		respond(true, "")
	case bthost.PairingMethodPasskeyComparison:
		fmt.Printf("does %s show %s? [y/N] ", dev.Address, displayed)
		respond(d.yes(), "")
	case bthost.PairingMethodPasskeyEntry:
		fmt.Printf("enter passkey shown on %s: ", dev.Address)
		respond(true, d.line())
	default:
		respond(false, "")
	}
}

func (d *consoleDelegate) OnPairingComplete(id string, err error) {
	if err != nil {
		fmt.Printf("pairing with %s failed: %v\n", id, err)
		return
	}
	fmt.Printf("pairing with %s complete\n", id)
}

func (d *consoleDelegate) line() string {
	s, err := d.in.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func (d *consoleDelegate) yes() bool {
	s := strings.ToLower(d.line())
	return s == "y" || s == "yes"
}
