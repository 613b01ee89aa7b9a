package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/compute"
)

// jobSpec is the YAML description of one kernel run: the program to
// build, the dispatch geometry, the buffers to allocate and the
// argument list binding them to the kernel.
type jobSpec struct {
	Kernel struct {
		Source  string `yaml:"source"`
		Name    string `yaml:"name"`
		Options string `yaml:"options"`
	} `yaml:"kernel"`

	Dims struct {
		Global []int `yaml:"global"`
		Local  []int `yaml:"local"`
		Offset []int `yaml:"offset"`
	} `yaml:"dims"`

	Buffers []jobBuffer `yaml:"buffers"`
	Args    []jobArg    `yaml:"args"`
}

type jobBuffer struct {
	Name string `yaml:"name"`
	// Size allocates an uninitialized buffer of that many bytes.
	// Float32 and Int32 allocate and seed instead.
	Size     int       `yaml:"size"`
	Float32  []float32 `yaml:"float32"`
	Int32    []int32   `yaml:"int32"`
	Readback bool      `yaml:"readback"`
}

// jobArg is a one-key union: exactly one field selects the argument
// kind.
type jobArg struct {
	Buffer     string   `yaml:"buffer"`
	Int32      *int32   `yaml:"int32"`
	Uint32     *uint32  `yaml:"uint32"`
	Float32    *float32 `yaml:"float32"`
	LocalBytes int      `yaml:"local_bytes"`
}

func runCmd() *cli.Command {
	var (
		driverName string
		jobPath    string
	)

	return &cli.Command{
		Name:  "run",
		Usage: "Build a program and run one kernel described by a YAML job file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "driver", Usage: "driver name (opencl, soft)", Destination: &driverName},
			&cli.StringFlag{
				Name:        "job",
				Aliases:     []string{"j"},
				Usage:       "path to the job file",
				Destination: &jobPath,
				Required:    true,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			_ = ctx

			job, err := loadJob(jobPath)
			if err != nil {
				return err
			}

			cc, err := openContext(driverName)
			if err != nil {
				return err
			}
			defer cc.Close()

			return runJob(cc, job)
		},
	}
}

func loadJob(path string) (*jobSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var job jobSpec
	if err := yaml.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("parse job file: %w", err)
	}
	if job.Kernel.Source == "" || job.Kernel.Name == "" {
		return nil, fmt.Errorf("job file: kernel.source and kernel.name are required")
	}
	if n := len(job.Dims.Global); n < 1 || n > 3 {
		return nil, fmt.Errorf("job file: dims.global needs 1 to 3 entries, got %d", n)
	}
	return &job, nil
}

func runJob(cc *compute.Context, job *jobSpec) error {
	source, err := os.ReadFile(job.Kernel.Source)
	if err != nil {
		return err
	}
	prog, err := cc.BuildProgram(string(source), job.Kernel.Options)
	if err != nil {
		return err
	}
	defer prog.Release()

	buffers := make(map[string]*compute.Buffer, len(job.Buffers))
	defer func() {
		for _, b := range buffers {
			b.Release()
		}
	}()
	for _, jb := range job.Buffers {
		b, err := createJobBuffer(cc, jb)
		if err != nil {
			return err
		}
		buffers[jb.Name] = b
	}

	args := make([]compute.Arg, 0, len(job.Args))
	for i, ja := range job.Args {
		a, err := resolveJobArg(buffers, ja)
		if err != nil {
			return fmt.Errorf("argument %d: %w", i, err)
		}
		args = append(args, a)
	}

	dims, err := jobDims(job)
	if err != nil {
		return err
	}

	ev, err := prog.Invoke(job.Kernel.Name, dims, args...)
	if err != nil {
		return err
	}
	if err := ev.Wait(); err != nil {
		return err
	}

	for _, jb := range job.Buffers {
		if !jb.Readback {
			continue
		}
		if err := printBuffer(jb, buffers[jb.Name]); err != nil {
			return err
		}
	}
	return nil
}

func createJobBuffer(cc *compute.Context, jb jobBuffer) (*compute.Buffer, error) {
	switch {
	case len(jb.Float32) > 0:
		b, err := cc.CreateBuffer(compute.MemFlags{}, 4*len(jb.Float32))
		if err != nil {
			return nil, err
		}
		ev, err := compute.WriteElems(b, jb.Float32, 0)
		if err != nil {
			b.Release()
			return nil, err
		}
		if err := ev.Wait(); err != nil {
			b.Release()
			return nil, err
		}
		return b, nil
	case len(jb.Int32) > 0:
		b, err := cc.CreateBuffer(compute.MemFlags{}, 4*len(jb.Int32))
		if err != nil {
			return nil, err
		}
		ev, err := compute.WriteElems(b, jb.Int32, 0)
		if err != nil {
			b.Release()
			return nil, err
		}
		if err := ev.Wait(); err != nil {
			b.Release()
			return nil, err
		}
		return b, nil
	case jb.Size > 0:
		return cc.CreateBuffer(compute.MemFlags{}, jb.Size)
	default:
		return nil, fmt.Errorf("buffer %q: size or seed data required", jb.Name)
	}
}

func resolveJobArg(buffers map[string]*compute.Buffer, ja jobArg) (compute.Arg, error) {
	switch {
	case ja.Buffer != "":
		b, ok := buffers[ja.Buffer]
		if !ok {
			return compute.Arg{}, fmt.Errorf("unknown buffer %q", ja.Buffer)
		}
		return b.Arg(), nil
	case ja.Int32 != nil:
		return compute.Value(*ja.Int32), nil
	case ja.Uint32 != nil:
		return compute.Value(*ja.Uint32), nil
	case ja.Float32 != nil:
		return compute.Value(*ja.Float32), nil
	case ja.LocalBytes > 0:
		return compute.LocalBytes(ja.LocalBytes), nil
	default:
		return compute.Arg{}, fmt.Errorf("no argument kind set")
	}
}

func jobDims(job *jobSpec) (compute.Dims, error) {
	g := job.Dims.Global
	l := job.Dims.Local
	if len(l) != 0 && len(l) != len(g) {
		return compute.Dims{}, fmt.Errorf("job file: dims.local needs 0 or %d entries", len(g))
	}
	at := func(s []int, i int) int {
		if i < len(s) {
			return s[i]
		}
		return 0
	}

	var d compute.Dims
	switch len(g) {
	case 1:
		d = compute.Dim1(g[0], at(l, 0))
	case 2:
		d = compute.Dim2(g[0], g[1], at(l, 0), at(l, 1))
	default:
		d = compute.Dim3(g[0], g[1], g[2], at(l, 0), at(l, 1), at(l, 2))
	}
	if o := job.Dims.Offset; len(o) > 0 {
		d = d.WithOffset(at(o, 0), at(o, 1), at(o, 2))
	}
	return d, nil
}

func printBuffer(jb jobBuffer, b *compute.Buffer) error {
	switch {
	case len(jb.Int32) > 0:
		out := make([]int32, len(jb.Int32))
		ev, err := compute.ReadElems(b, out, 0)
		if err != nil {
			return err
		}
		if err := ev.Wait(); err != nil {
			return err
		}
		fmt.Printf("%s: %v\n", jb.Name, out)
	default:
		out := make([]float32, b.Size()/4)
		ev, err := compute.ReadElems(b, out, 0)
		if err != nil {
			return err
		}
		if err := ev.Wait(); err != nil {
			return err
		}
		fmt.Printf("%s: %v\n", jb.Name, out)
	}
	return nil
}
