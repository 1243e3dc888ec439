// s3otool is a CLI utility for inspecting and converting Spring S3O models.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/spring-s3o/internal/assets"
	"github.com/Faultbox/spring-s3o/internal/config"
	"github.com/Faultbox/spring-s3o/internal/logger"
	"github.com/Faultbox/spring-s3o/pkg/export"
	"github.com/Faultbox/spring-s3o/pkg/formats"
)

var cfg *config.Config

func main() {
	config.ParseFlags()
	args := config.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fileCfg := logger.FileConfig{
		Path:       cfg.Logging.LogFile,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	}
	if err := logger.InitWithFileConfig(cfg.Logging.Level, fileCfg, true); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	command := args[0]
	args = args[1:]

	switch command {
	case "info":
		err = cmdInfo(args)
	case "tree":
		err = cmdTree(args)
	case "dump":
		err = cmdDump(args)
	case "textures", "tex":
		err = cmdTextures(args)
	case "export", "x":
		err = cmdExport(args)
	case "config":
		err = cmdConfig(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		logger.Debug("command failed", zap.String("command", command), zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		logger.Sync()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`s3otool - Spring S3O model utility

Usage:
  s3otool [global options] <command> [options]

Commands:
  info <file.s3o>                    Show header, counts and bounds
  tree <file.s3o>                    Print the piece hierarchy
  dump <file.s3o>                    Dump header and pieces as YAML
  textures <file.s3o>                Locate the model's texture files
  export <file.s3o> [out.gltf|.glb] Convert to glTF 2.0
  config [-write] [path]             Print or save the effective config

Global options:
  -config <path>     Config file (default ./s3otool.yaml)
  -debug             Enable debug logging
  -log <path>        Also write logs to a rotating file
  -strings <policy>  ascii or windows-1252
  -max-depth <n>     Piece tree depth limit
  -textures <dirs>   Extra texture directories, comma-separated
  -glb               Export binary glTF

Examples:
  s3otool info objects3d/armtank.s3o
  s3otool tree objects3d/armtank.s3o
  s3otool -strings windows-1252 dump objects3d/armtank.s3o
  s3otool -glb export objects3d/armtank.s3o
  s3otool -strings windows-1252 config -write`)
}

// openModel decodes the model at path with the configured decoder options.
func openModel(path string) (*formats.S3O, error) {
	opts, err := cfg.DecodeOptions()
	if err != nil {
		return nil, err
	}
	model, err := formats.ParseS3OFile(path, opts...)
	if err != nil {
		return nil, err
	}
	logger.Debug("decoded model",
		zap.String("path", path),
		zap.Int("pieces", model.PieceCount()),
		zap.Int("vertices", model.GetTotalVertexCount()))
	return model, nil
}

func cmdInfo(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: s3otool info <file.s3o>")
	}

	model, err := openModel(args[0])
	if err != nil {
		return err
	}
	printInfo(os.Stdout, args[0], model)
	return nil
}

func printInfo(w io.Writer, path string, model *formats.S3O) {
	h := model.Header
	fmt.Fprintf(w, "Model:      %s\n", path)
	fmt.Fprintf(w, "Magic:      %q (version %d)\n", h.Magic, h.Version)
	fmt.Fprintf(w, "Radius:     %.3f\n", h.Radius)
	fmt.Fprintf(w, "Height:     %.3f\n", h.Height)
	fmt.Fprintf(w, "Midpoint:   (%.3f, %.3f, %.3f)\n", h.MidX, h.MidY, h.MidZ)
	fmt.Fprintf(w, "Texture 1:  %s\n", orNone(h.Texture1))
	fmt.Fprintf(w, "Texture 2:  %s\n", orNone(h.Texture2))
	fmt.Fprintf(w, "Collision:  %v\n", model.HasCollisionData())
	fmt.Fprintf(w, "Pieces:     %d\n", model.PieceCount())
	fmt.Fprintf(w, "Vertices:   %d\n", model.GetTotalVertexCount())
	fmt.Fprintf(w, "Faces:      %d\n", model.GetTotalFaceCount())
	if lo, hi, ok := model.Bounds(); ok {
		fmt.Fprintf(w, "Bounds:     (%.3f, %.3f, %.3f) - (%.3f, %.3f, %.3f)\n",
			lo.X, lo.Y, lo.Z, hi.X, hi.Y, hi.Z)
	} else {
		fmt.Fprintln(w, "Bounds:     (no geometry)")
	}
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func cmdTree(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: s3otool tree <file.s3o>")
	}

	model, err := openModel(args[0])
	if err != nil {
		return err
	}
	printTree(os.Stdout, model)
	return nil
}

func printTree(w io.Writer, model *formats.S3O) {
	model.Walk(func(p *formats.S3OPiece, depth int) bool {
		world := model.WorldOffset(p)
		label := fmt.Sprintf("%d verts, %d faces", len(p.Vertices), len(p.Faces))
		if p.IsEmpty() {
			label = "empty"
		}
		fmt.Fprintf(w, "%s%s [%s] at (%.2f, %.2f, %.2f)\n",
			strings.Repeat("  ", depth), p.Name, label, world.X, world.Y, world.Z)
		return true
	})
}

// Dump types keep the YAML output stable and readable.
type dumpModel struct {
	Header dumpHeader  `yaml:"header"`
	Pieces []dumpPiece `yaml:"pieces"`
}

type dumpHeader struct {
	Magic               string     `yaml:"magic"`
	Version             uint32     `yaml:"version"`
	Radius              float32    `yaml:"radius"`
	Height              float32    `yaml:"height"`
	Mid                 [3]float32 `yaml:"mid,flow"`
	RootPieceOffset     uint32     `yaml:"root_piece_offset"`
	CollisionDataOffset uint32     `yaml:"collision_data_offset"`
	Texture1            string     `yaml:"texture1,omitempty"`
	Texture2            string     `yaml:"texture2,omitempty"`
}

type dumpPiece struct {
	Name          string       `yaml:"name"`
	Parent        string       `yaml:"parent,omitempty"`
	Offset        uint32       `yaml:"file_offset"`
	LocalOffset   [3]float32   `yaml:"local_offset,flow"`
	PrimitiveType string       `yaml:"primitive_type"`
	VertexCount   int          `yaml:"vertex_count"`
	FaceCount     int          `yaml:"face_count"`
	Children      []string     `yaml:"children,omitempty,flow"`
	Vertices      []dumpVertex `yaml:"vertices,omitempty"`
	Faces         [][]uint32   `yaml:"faces,omitempty,flow"`
}

type dumpVertex struct {
	Position [3]float32 `yaml:"pos,flow"`
	Normal   [3]float32 `yaml:"normal,flow"`
	UV       [2]float32 `yaml:"uv,flow"`
}

func cmdDump(args []string) error {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	geometry := fs.Bool("geometry", false, "Include vertices and faces")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return errors.New("usage: s3otool dump [-geometry] <file.s3o>")
	}

	model, err := openModel(fs.Arg(0))
	if err != nil {
		return err
	}
	return writeDump(os.Stdout, model, *geometry)
}

func writeDump(w io.Writer, model *formats.S3O, geometry bool) error {
	h := model.Header
	out := dumpModel{
		Header: dumpHeader{
			Magic:               h.Magic,
			Version:             h.Version,
			Radius:              h.Radius,
			Height:              h.Height,
			Mid:                 h.Mid().Array(),
			RootPieceOffset:     h.RootPieceOffset,
			CollisionDataOffset: h.CollisionDataOffset,
			Texture1:            h.Texture1,
			Texture2:            h.Texture2,
		},
	}

	for _, p := range model.Pieces {
		dp := dumpPiece{
			Name:          p.Name,
			Offset:        p.Offset,
			LocalOffset:   p.LocalOffset.Array(),
			PrimitiveType: p.PrimitiveType.String(),
			VertexCount:   len(p.Vertices),
			FaceCount:     len(p.Faces),
		}
		if parent := model.Parent(p); parent != nil {
			dp.Parent = parent.Name
		}
		for _, c := range p.Children {
			dp.Children = append(dp.Children, c.Name)
		}
		if geometry {
			for _, v := range p.Vertices {
				dp.Vertices = append(dp.Vertices, dumpVertex{
					Position: v.Position.Array(),
					Normal:   v.Normal.Array(),
					UV:       v.UV.Array(),
				})
			}
			for _, f := range p.Faces {
				dp.Faces = append(dp.Faces, []uint32(f))
			}
		}
		out.Pieces = append(out.Pieces, dp)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encoding YAML: %w", err)
	}
	return enc.Close()
}

func cmdTextures(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: s3otool textures <file.s3o>")
	}

	model, err := openModel(args[0])
	if err != nil {
		return err
	}

	resolver := assets.NewResolver(args[0], cfg.Textures)
	textures := resolver.ResolveModel(model.Header)
	if len(textures) == 0 {
		fmt.Println("No textures referenced")
		return nil
	}

	missing := 0
	for _, tex := range textures {
		if tex.Err != nil {
			fmt.Printf("%-9s %-24s NOT FOUND\n", tex.Slot, tex.Name)
			missing++
			continue
		}
		fmt.Printf("%-9s %-24s %s\n", tex.Slot, tex.Name, tex.Path)
	}

	if dirs := resolver.Dirs(); len(dirs) > 0 {
		fmt.Fprintf(os.Stderr, "\n(searched: %s)\n", strings.Join(dirs, ", "))
	}
	if missing > 0 {
		return fmt.Errorf("%d texture(s) not found", missing)
	}
	return nil
}

func cmdExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	flip := fs.String("flip-uv", "", "UV flip: auto, always or never (default from config)")
	resolveTextures := fs.Bool("resolve", true, "Point image URIs at resolved texture files")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return errors.New("usage: s3otool export [-flip-uv mode] <file.s3o> [out.gltf|out.glb]")
	}

	input := fs.Arg(0)
	output, asBinary := outputPath(input, fs.Arg(1), cfg.Export.Binary)

	mode := cfg.Export.FlipUV
	if *flip != "" {
		mode = *flip
	}
	flipMode, err := export.ParseFlipMode(mode)
	if err != nil {
		return err
	}

	model, err := openModel(input)
	if err != nil {
		return err
	}

	opts := export.Options{
		Name: strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)),
		Flip: flipMode,
	}
	if *resolveTextures {
		resolver := assets.NewResolver(input, cfg.Textures)
		outDir := filepath.Dir(output)
		opts.TextureURI = func(name string) string {
			path, err := resolver.Resolve(name)
			if err != nil {
				return name
			}
			if rel, err := filepath.Rel(outDir, path); err == nil {
				return filepath.ToSlash(rel)
			}
			return filepath.ToSlash(path)
		}
	}

	doc, err := export.ToGLTF(model, opts)
	if err != nil {
		return err
	}
	if err := export.WriteFile(output, doc, asBinary); err != nil {
		return err
	}

	logger.Info("exported model", zap.String("input", input), zap.String("output", output))
	fmt.Printf("Exported: %s (%d nodes, %d meshes)\n", output, len(doc.Nodes), len(doc.Meshes))
	return nil
}

// outputPath picks the export target. An explicit .glb or .gltf extension
// decides the format; otherwise preferBinary does and the extension follows.
func outputPath(input, output string, preferBinary bool) (string, bool) {
	if output != "" {
		switch strings.ToLower(filepath.Ext(output)) {
		case ".glb":
			return output, true
		case ".gltf":
			return output, false
		}
		return output, preferBinary
	}

	ext := ".gltf"
	if preferBinary {
		ext = ".glb"
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + ext, preferBinary
}

func cmdConfig(args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	write := fs.Bool("write", false, "Save the effective config instead of printing it")
	fs.Parse(args)

	if !*write {
		return printConfig(os.Stdout, cfg)
	}

	path, err := saveConfig(cfg, fs.Arg(0))
	if err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	logger.Info("saved config", zap.String("path", path))
	fmt.Printf("Wrote: %s\n", path)
	return nil
}

func printConfig(w io.Writer, c *config.Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encoding YAML: %w", err)
	}
	return enc.Close()
}

// saveConfig writes c to path, or to the user config directory when path is empty.
func saveConfig(c *config.Config, path string) (string, error) {
	if path == "" {
		return config.DefaultPath(), c.Save()
	}
	return path, c.SaveTo(path)
}
