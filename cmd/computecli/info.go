package main

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/gogpu/compute"
	"github.com/gogpu/compute/driver"
)

func infoCmd() *cli.Command {
	var (
		driverName string
		asJSON     bool
	)

	return &cli.Command{
		Name:  "info",
		Usage: "Show the selected compute device",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "driver", Usage: "driver name (opencl, soft)", Destination: &driverName},
			&cli.BoolFlag{Name: "json", Usage: "emit machine-readable JSON", Destination: &asJSON},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			_ = ctx

			cc, err := openContext(driverName)
			if err != nil {
				return err
			}
			defer cc.Close()

			info := cc.DeviceInfo()
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(deviceInfoJSON(info, driverName))
			}
			printDeviceInfo(info)
			return nil
		},
	}
}

func openContext(driverName string) (*compute.Context, error) {
	if driverName != "" {
		return compute.NewContext(compute.WithDriver(driverName))
	}
	return compute.NewContext()
}

type infoJSON struct {
	Driver  string `json:"driver,omitempty"`
	Name    string `json:"name"`
	Vendor  string `json:"vendor"`
	Version string `json:"version"`

	MaxWorkGroupSize int    `json:"max_work_group_size"`
	MaxWorkItemSizes [3]int `json:"max_work_item_sizes"`

	Image2DMax [2]int `json:"image_2d_max"`
	Image3DMax [3]int `json:"image_3d_max"`

	GlobalMemSize uint64 `json:"global_mem_size"`
	LocalMemSize  uint64 `json:"local_mem_size"`
	LittleEndian  bool   `json:"little_endian"`
}

func deviceInfoJSON(info driver.DeviceInfo, driverName string) infoJSON {
	return infoJSON{
		Driver:           driverName,
		Name:             info.Name,
		Vendor:           info.Vendor,
		Version:          info.Version,
		MaxWorkGroupSize: info.MaxWorkGroupSize,
		MaxWorkItemSizes: info.MaxWorkItemSizes,
		Image2DMax:       [2]int{info.Image2DMaxWidth, info.Image2DMaxHeight},
		Image3DMax:       [3]int{info.Image3DMaxWidth, info.Image3DMaxHeight, info.Image3DMaxDepth},
		GlobalMemSize:    info.GlobalMemSize,
		LocalMemSize:     info.LocalMemSize,
		LittleEndian:     info.LittleEndian,
	}
}

func printDeviceInfo(info driver.DeviceInfo) {
	fmt.Printf("Device:              %s\n", info.Name)
	fmt.Printf("Vendor:              %s\n", info.Vendor)
	fmt.Printf("Version:             %s\n", info.Version)
	fmt.Printf("Max work-group size: %d\n", info.MaxWorkGroupSize)
	fmt.Printf("Max work-item sizes: %v\n", info.MaxWorkItemSizes)
	fmt.Printf("Image 2D max:        %dx%d\n", info.Image2DMaxWidth, info.Image2DMaxHeight)
	fmt.Printf("Image 3D max:        %dx%dx%d\n", info.Image3DMaxWidth, info.Image3DMaxHeight, info.Image3DMaxDepth)
	fmt.Printf("Global memory:       %d MiB\n", info.GlobalMemSize>>20)
	fmt.Printf("Local memory:        %d KiB\n", info.LocalMemSize>>10)
	fmt.Printf("Little endian:       %v\n", info.LittleEndian)
}
