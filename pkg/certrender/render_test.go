package certrender

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderProducesPNG(t *testing.T) {
	r := &Renderer{Width: 400, Height: 300}
	out, err := r.Render(Data{
		StudentName:       "Ada Lovelace",
		CourseTitle:       "Go Basics",
		InstructorName:    "Rob Pike",
		DurationMinutes:   90,
		CertificateNumber: "CERT-2026-ABCDEF12",
		IssuedAt:          time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		Issuer:            "Course Connect",
	})
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 400, img.Bounds().Dx())
	assert.Equal(t, 300, img.Bounds().Dy())
}

func TestRenderRequiresNames(t *testing.T) {
	_, err := New().Render(Data{CourseTitle: "Go Basics"})
	assert.Error(t, err)
}
