// Package pdftest builds small, well-formed PDFs in memory so tests do not
// depend on binary fixtures.
package pdftest

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
)

// Minimal returns a valid single-page PDF with an empty page.
func Minimal() []byte {
	return build([]string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>",
	})
}

// WithJPEGImages returns a single-page PDF embedding each JPEG as a
// DCTDecode image XObject, painted in the given order.
func WithJPEGImages(jpegs ...[]byte) []byte {
	var resources, content bytes.Buffer
	for i := range jpegs {
		fmt.Fprintf(&resources, "/Im%d %d 0 R ", i, 5+i)
		fmt.Fprintf(&content, "q 100 0 0 100 0 0 cm /Im%d Do Q\n", i)
	}

	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
			"/Resources << /XObject << %s>> >> /Contents 4 0 R >>", resources.String()),
		streamObj("<< /Length %d >>", content.Bytes()),
	}
	for _, data := range jpegs {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			panic(fmt.Sprintf("pdftest: not a decodable image: %v", err))
		}
		objs = append(objs, streamObj(fmt.Sprintf(
			"<< /Type /XObject /Subtype /Image /Width %d /Height %d "+
				"/ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /DCTDecode /Length %%d >>",
			cfg.Width, cfg.Height), data))
	}
	return build(objs)
}

// JPEG encodes a width x height solid-color JPEG.
func JPEG(width, height int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	fill := color.RGBA{R: 120, G: 140, B: 160, A: 255}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		panic(fmt.Sprintf("pdftest: jpeg encode: %v", err))
	}
	return buf.Bytes()
}

func streamObj(dictFmt string, data []byte) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, dictFmt, len(data))
	buf.WriteString("\nstream\n")
	buf.Write(data)
	buf.WriteString("\nendstream")
	return buf.String()
}

// build assembles numbered objects into a PDF file with a correct
// cross-reference table.
func build(objs []string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objs)+1)
	for i, obj := range objs {
		offsets[i+1] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(objs); i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(objs)+1, xref)
	return buf.Bytes()
}
