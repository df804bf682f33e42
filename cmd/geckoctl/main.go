// Command geckoctl decodes, converts and pre-applies Gecko codelists.
package main

import (
	"fmt"
	"os"

	cli "github.com/urfave/cli/v2"

	"github.com/Urethramancer/geckolist/gecko"
)

func loadTable(path string) (*gecko.CodeTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(data) >= 2 && data[0] == 0x00 && data[1] == 0xD0 {
		return gecko.DecodeCodeTableBinary(data)
	}
	return gecko.DecodeCodeTableText(string(data))
}

func main() {
	app := cli.NewApp()
	app.Name = "geckoctl"
	app.Usage = "Tool to decode, convert and pre-apply Gecko codelists"
	app.Action = func(c *cli.Context) error {
		cli.ShowAppHelp(c)
		return nil
	}
	app.Commands = []*cli.Command{
		{
			Name:      "decode",
			Aliases:   []string{"d"},
			Usage:     "Re-emit a codelist in another textual flavor",
			ArgsUsage: "[--flavor flavor] codelist [output]",
			Action: func(c *cli.Context) error {
				args := c.Args()
				if args.Len() < 1 {
					return cli.Exit("No codelist provided", 1)
				}
				table, err := loadTable(args.First())
				if err != nil {
					return cli.Exit(err, 1)
				}

				var out string
				switch flavor := c.String("flavor"); flavor {
				case "dolphin":
					out, err = table.AsText(gecko.Dolphin)
				case "ocarina":
					out, err = table.AsText(gecko.Ocarina)
				case "raw":
					out, err = table.AsText(gecko.Raw)
				case "codelist":
					out, err = table.AsCodelist()
				default:
					return cli.Exit(fmt.Sprintf("Unknown flavor %q", flavor), 1)
				}
				if err != nil {
					return cli.Exit(err, 1)
				}

				if args.Len() >= 2 {
					if err := os.WriteFile(args.Get(1), []byte(out), 0644); err != nil {
						return cli.Exit(err, 1)
					}
					return nil
				}
				fmt.Print(out)
				return nil
			},
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "flavor",
					Value: "codelist",
					Usage: "output flavor: dolphin, ocarina, raw or codelist",
				},
			},
		},
		{
			Name:      "apply",
			Aliases:   []string{"a"},
			Usage:     "Pre-apply a codelist's static writes to a flat binary image",
			ArgsUsage: "codelist image",
			Action: func(c *cli.Context) error {
				args := c.Args()
				if args.Len() < 2 {
					return cli.Exit("Insufficient arguments", 1)
				}
				table, err := loadTable(args.First())
				if err != nil {
					return cli.Exit(err, 1)
				}

				raw, err := os.ReadFile(args.Get(1))
				if err != nil {
					return cli.Exit(err, 1)
				}
				img := newFlatImage(raw)

				applied := table.Apply(img)
				fmt.Printf("Pre-applied %s, any write occurred: %t\n", args.First(), applied)

				if err := os.WriteFile(args.Get(1), img.buf, 0644); err != nil {
					return cli.Exit(err, 1)
				}
				return nil
			},
		},
		{
			Name:      "map",
			Aliases:   []string{"m"},
			Usage:     "Print an indented human-readable command tree",
			ArgsUsage: "[--width n] codelist",
			Action: func(c *cli.Context) error {
				args := c.Args()
				if args.Len() < 1 {
					return cli.Exit("No codelist provided", 1)
				}
				table, err := loadTable(args.First())
				if err != nil {
					return cli.Exit(err, 1)
				}
				for _, line := range table.PrintMap(c.Int("width")) {
					fmt.Println(line)
				}
				return nil
			},
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  "width",
					Value: 2,
					Usage: "indent width in spaces",
				},
			},
		},
	}
	app.Run(os.Args)
}
