package main

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/compute"
)

func imageCmd() *cli.Command {
	var (
		driverName string
		inPath     string
		outPath    string
		fillSpec   string
		rectSpec   string
		resizeSpec string
	)

	return &cli.Command{
		Name:  "image",
		Usage: "Round-trip a PNG through device image memory",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "driver", Usage: "driver name (opencl, soft)", Destination: &driverName},
			&cli.StringFlag{
				Name:        "in",
				Usage:       "input PNG",
				Destination: &inPath,
				Required:    true,
			},
			&cli.StringFlag{
				Name:        "out",
				Usage:       "output PNG",
				Destination: &outPath,
				Required:    true,
			},
			&cli.StringFlag{Name: "fill", Usage: "fill color r,g,b,a in 0..1 (e.g. 1,0,0,1)", Destination: &fillSpec},
			&cli.StringFlag{Name: "rect", Usage: "fill rectangle x,y,w,h (default whole image)", Destination: &rectSpec},
			&cli.StringFlag{Name: "resize", Usage: "output size WxH (e.g. 256x256)", Destination: &resizeSpec},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			_ = ctx

			src, err := loadPNG(inPath)
			if err != nil {
				return err
			}

			cc, err := openContext(driverName)
			if err != nil {
				return err
			}
			defer cc.Close()

			out, err := roundTrip(cc, src, fillSpec, rectSpec)
			if err != nil {
				return err
			}

			if resizeSpec != "" {
				out, err = resizeImage(out, resizeSpec)
				if err != nil {
					return err
				}
			}
			return savePNG(outPath, out)
		},
	}
}

// roundTrip uploads the picture to a device image, applies the
// optional fill and reads the result back.
func roundTrip(cc *compute.Context, src *image.NRGBA, fillSpec, rectSpec string) (*image.NRGBA, error) {
	w := src.Rect.Dx()
	h := src.Rect.Dy()

	img, err := cc.CreateImage(compute.MemFlags{}, compute.ImageDesc{
		Type:     compute.Image2D,
		Width:    w,
		Height:   h,
		Order:    compute.OrderRGBA,
		DataType: compute.TypeUnormInt8,
	})
	if err != nil {
		return nil, err
	}
	defer img.Release()

	hf := compute.HostFormat{
		Order:    compute.HostOrderRGBA,
		DataType: compute.HostUInt8,
		RowPitch: src.Stride,
	}
	ev, err := img.Write(src.Pix, hf, compute.Region2D(0, 0, w, h))
	if err != nil {
		return nil, err
	}

	if fillSpec != "" {
		color, err := parseFill(fillSpec)
		if err != nil {
			return nil, err
		}
		region := compute.Region2D(0, 0, w, h)
		if rectSpec != "" {
			region, err = parseRect(rectSpec)
			if err != nil {
				return nil, err
			}
		}
		if ev, err = img.Fill(color, region, compute.After(ev)); err != nil {
			return nil, err
		}
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	readBack, err := img.Read(dst.Pix, compute.HostFormat{
		Order:    compute.HostOrderRGBA,
		DataType: compute.HostUInt8,
		RowPitch: dst.Stride,
	}, compute.Region2D(0, 0, w, h), compute.After(ev))
	if err != nil {
		return nil, err
	}
	if err := readBack.Wait(); err != nil {
		return nil, err
	}
	return dst, nil
}

func parseFill(spec string) (compute.Color, error) {
	var c compute.Color
	n, err := fmt.Sscanf(spec, "%f,%f,%f,%f", &c[0], &c[1], &c[2], &c[3])
	if err != nil || n != 4 {
		return c, fmt.Errorf("fill color %q: want r,g,b,a", spec)
	}
	return c, nil
}

func parseRect(spec string) (compute.Region, error) {
	var x, y, w, h int
	n, err := fmt.Sscanf(spec, "%d,%d,%d,%d", &x, &y, &w, &h)
	if err != nil || n != 4 {
		return compute.Region{}, fmt.Errorf("rect %q: want x,y,w,h", spec)
	}
	return compute.Region2D(x, y, w, h), nil
}

func resizeImage(src *image.NRGBA, spec string) (*image.NRGBA, error) {
	parts := strings.SplitN(spec, "x", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("resize %q: want WxH", spec)
	}
	var w, h int
	if _, err := fmt.Sscanf(spec, "%dx%d", &w, &h); err != nil || w <= 0 || h <= 0 {
		return nil, fmt.Errorf("resize %q: want WxH", spec)
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Rect, src, src.Rect, xdraw.Src, nil)
	return dst, nil
}

func loadPNG(path string) (*image.NRGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	decoded, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if n, ok := decoded.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n, nil
	}
	bounds := decoded.Bounds()
	n := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	xdraw.Draw(n, n.Rect, decoded, bounds.Min, xdraw.Src)
	return n, nil
}

func savePNG(path string, img *image.NRGBA) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
