package render

import (
	"testing"

	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
)

func TestChooseSurfaceFormatPrefersSRGB(t *testing.T) {
	formats := []khr_surface.SurfaceFormat{
		{Format: core1_0.FormatR8G8B8A8UnsignedNormalized, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
		{Format: core1_0.FormatB8G8R8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
	}

	chosen := chooseSurfaceFormat(formats)
	if chosen.Format != core1_0.FormatB8G8R8A8SRGB {
		t.Errorf("chose format %s, wanted B8G8R8A8 sRGB", chosen.Format)
	}
}

func TestChooseSurfaceFormatFallsBackToFirst(t *testing.T) {
	formats := []khr_surface.SurfaceFormat{
		{Format: core1_0.FormatR8G8B8A8UnsignedNormalized, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
		{Format: core1_0.FormatB8G8R8A8UnsignedNormalized, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
	}

	chosen := chooseSurfaceFormat(formats)
	if chosen.Format != formats[0].Format {
		t.Errorf("chose format %s, wanted the first advertised format", chosen.Format)
	}
}

func TestChoosePresentMode(t *testing.T) {
	withMailbox := []khr_surface.PresentMode{
		khr_surface.PresentModeFIFO,
		khr_surface.PresentModeMailbox,
		khr_surface.PresentModeImmediate,
	}
	if mode := choosePresentMode(withMailbox); mode != khr_surface.PresentModeMailbox {
		t.Errorf("chose mode %s, wanted mailbox", mode)
	}

	withoutMailbox := []khr_surface.PresentMode{
		khr_surface.PresentModeImmediate,
	}
	if mode := choosePresentMode(withoutMailbox); mode != khr_surface.PresentModeFIFO {
		t.Errorf("chose mode %s, wanted FIFO", mode)
	}
}

func TestClampExtentHonorsCurrentExtent(t *testing.T) {
	capabilities := &khr_surface.SurfaceCapabilities{
		CurrentExtent: core1_0.Extent2D{Width: 1024, Height: 768},
	}

	extent := clampExtent(capabilities, 800, 600)
	if extent.Width != 1024 || extent.Height != 768 {
		t.Errorf("got extent %dx%d, wanted the surface's 1024x768", extent.Width, extent.Height)
	}
}

func TestClampExtentClampsDrawableSize(t *testing.T) {
	capabilities := &khr_surface.SurfaceCapabilities{
		CurrentExtent:  core1_0.Extent2D{Width: -1, Height: -1},
		MinImageExtent: core1_0.Extent2D{Width: 64, Height: 64},
		MaxImageExtent: core1_0.Extent2D{Width: 2048, Height: 2048},
	}

	extent := clampExtent(capabilities, 4096, 32)
	if extent.Width != 2048 {
		t.Errorf("width %d not clamped to the 2048 maximum", extent.Width)
	}
	if extent.Height != 64 {
		t.Errorf("height %d not clamped to the 64 minimum", extent.Height)
	}

	extent = clampExtent(capabilities, 800, 600)
	if extent.Width != 800 || extent.Height != 600 {
		t.Errorf("got extent %dx%d, wanted the drawable's 800x600", extent.Width, extent.Height)
	}
}
