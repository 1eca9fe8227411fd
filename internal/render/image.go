package render

import (
	"fmt"
	"image"

	"github.com/jscyril/golang_media_player/api"
	playerrors "github.com/jscyril/golang_media_player/pkg/errors"
)

// FrameImage wraps the planes of a decoded frame as an image.Image without
// copying where the layout allows it.
func FrameImage(f *api.VideoFrame) (image.Image, error) {
	if f == nil || f.Width <= 0 || f.Height <= 0 {
		return nil, frameError(f, fmt.Errorf("empty frame"))
	}
	rect := image.Rect(0, 0, f.Width, f.Height)

	switch f.Format {
	case api.PixelFormatRGBA:
		if err := checkPlanes(f, 1, [][2]int{{f.Width * 4, f.Height}}); err != nil {
			return nil, err
		}
		return &image.RGBA{Pix: f.Planes[0], Stride: f.Strides[0], Rect: rect}, nil

	case api.PixelFormatRGB24:
		if err := checkPlanes(f, 1, [][2]int{{f.Width * 3, f.Height}}); err != nil {
			return nil, err
		}
		img := image.NewRGBA(rect)
		for y := 0; y < f.Height; y++ {
			src := f.Planes[0][y*f.Strides[0]:]
			dst := img.Pix[y*img.Stride:]
			for x := 0; x < f.Width; x++ {
				dst[x*4] = src[x*3]
				dst[x*4+1] = src[x*3+1]
				dst[x*4+2] = src[x*3+2]
				dst[x*4+3] = 255
			}
		}
		return img, nil

	case api.PixelFormatYUV420P, api.PixelFormatYUV422P, api.PixelFormatYUV444P:
		ratio, cw, ch := chroma(f.Format, f.Width, f.Height)
		if err := checkPlanes(f, 3, [][2]int{{f.Width, f.Height}, {cw, ch}, {cw, ch}}); err != nil {
			return nil, err
		}
		return &image.YCbCr{
			Y: f.Planes[0], Cb: f.Planes[1], Cr: f.Planes[2],
			YStride: f.Strides[0], CStride: f.Strides[1],
			SubsampleRatio: ratio,
			Rect:           rect,
		}, nil

	case api.PixelFormatNV12:
		_, cw, ch := chroma(api.PixelFormatYUV420P, f.Width, f.Height)
		if err := checkPlanes(f, 2, [][2]int{{f.Width, f.Height}, {cw * 2, ch}}); err != nil {
			return nil, err
		}
		img := image.NewYCbCr(rect, image.YCbCrSubsampleRatio420)
		for y := 0; y < f.Height; y++ {
			copy(img.Y[y*img.YStride:y*img.YStride+f.Width], f.Planes[0][y*f.Strides[0]:])
		}
		for y := 0; y < ch; y++ {
			uv := f.Planes[1][y*f.Strides[1]:]
			for x := 0; x < cw; x++ {
				img.Cb[y*img.CStride+x] = uv[x*2]
				img.Cr[y*img.CStride+x] = uv[x*2+1]
			}
		}
		return img, nil

	default:
		return nil, frameError(f, fmt.Errorf("pixel format %s not supported", f.Format))
	}
}

func chroma(format api.PixelFormat, w, h int) (image.YCbCrSubsampleRatio, int, int) {
	switch format {
	case api.PixelFormatYUV420P:
		return image.YCbCrSubsampleRatio420, (w + 1) / 2, (h + 1) / 2
	case api.PixelFormatYUV422P:
		return image.YCbCrSubsampleRatio422, (w + 1) / 2, h
	default:
		return image.YCbCrSubsampleRatio444, w, h
	}
}

// checkPlanes verifies each plane holds rows of at least the given width.
func checkPlanes(f *api.VideoFrame, n int, dims [][2]int) error {
	if len(f.Planes) < n || len(f.Strides) < n {
		return frameError(f, fmt.Errorf("%s needs %d planes, got %d", f.Format, n, len(f.Planes)))
	}
	for i, d := range dims {
		rowBytes, rows := d[0], d[1]
		if f.Strides[i] < rowBytes {
			return frameError(f, fmt.Errorf("plane %d stride %d below row size %d", i, f.Strides[i], rowBytes))
		}
		if need := f.Strides[i]*(rows-1) + rowBytes; len(f.Planes[i]) < need {
			return frameError(f, fmt.Errorf("plane %d holds %d bytes, need %d", i, len(f.Planes[i]), need))
		}
	}
	return nil
}

func frameError(f *api.VideoFrame, err error) error {
	source := ""
	if f != nil {
		source = fmt.Sprintf("pts %d", f.PTS)
	}
	return playerrors.NewPlayerError("render_frame", playerrors.KindRenderer, source, err)
}
