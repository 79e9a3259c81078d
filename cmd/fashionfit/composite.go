package main

import (
	"encoding/json"
	"fmt"
	"image"
	"os"

	"github.com/spf13/cobra"

	"github.com/raushankrgupta/fashionfit/compositor"
	"github.com/raushankrgupta/fashionfit/landmarks"
)

type compositeOptions struct {
	photo     string
	garment   string
	hair      string
	landmarks string
	out       string
}

func newCompositeCmd() *cobra.Command {
	var opts compositeOptions
	cmd := &cobra.Command{
		Use:   "composite",
		Short: "Composite a garment (and optional hairstyle) onto a photo",
		Long: `Draws the garment aligned to the pose landmarks and the hairstyle
aligned to the face mesh, writes the result as PNG and prints the overlay report.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runComposite(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.photo, "photo", "", "user photo (PNG or JPEG)")
	f.StringVar(&opts.garment, "garment", "", "garment image")
	f.StringVar(&opts.hair, "hair", "", "hairstyle overlay image (optional)")
	f.StringVar(&opts.landmarks, "landmarks", "", `landmarks JSON file ({"pose":[...],"face":[...]})`)
	f.StringVarP(&opts.out, "out", "o", "composite.png", "output PNG path")
	_ = cmd.MarkFlagRequired("photo")
	_ = cmd.MarkFlagRequired("garment")
	return cmd
}

func runComposite(cmd *cobra.Command, opts compositeOptions) error {
	photo, err := decodeFile(opts.photo)
	if err != nil {
		return err
	}
	garmentImg, err := decodeFile(opts.garment)
	if err != nil {
		return err
	}
	var hair image.Image
	if opts.hair != "" {
		if hair, err = decodeFile(opts.hair); err != nil {
			return err
		}
	}

	var lm landmarks.Landmarks
	if opts.landmarks != "" {
		data, err := os.ReadFile(opts.landmarks)
		if err != nil {
			return err
		}
		if lm, err = landmarks.Parse(data); err != nil {
			return fmt.Errorf("%s: %w", opts.landmarks, err)
		}
	}

	merged, report := compositor.Composite(photo, garmentImg, hair, lm)
	data, err := compositor.EncodePNG(merged)
	if err != nil {
		return err
	}
	if err := os.WriteFile(opts.out, data, 0o644); err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Output string            `json:"output"`
		Report compositor.Report `json:"report"`
	}{opts.out, report})
}

func decodeFile(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, _, err := compositor.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}
