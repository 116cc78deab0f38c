package certrender

import (
	"bytes"
	"fmt"
	"time"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

const (
	defaultWidth  = 1600
	defaultHeight = 1131
)

// Data 证书上展示的内容
type Data struct {
	StudentName       string
	CourseTitle       string
	InstructorName    string
	DurationMinutes   int
	CertificateNumber string
	IssuedAt          time.Time
	Issuer            string
}

// Renderer 把证书绘制为 PNG
type Renderer struct {
	Width  int
	Height int
}

func New() *Renderer {
	return &Renderer{Width: defaultWidth, Height: defaultHeight}
}

func (r *Renderer) text(dc *gg.Context, s string, y, scale float64) {
	cx := float64(r.Width) / 2
	dc.Push()
	dc.ScaleAbout(scale, scale, cx, y)
	dc.DrawStringAnchored(s, cx, y, 0.5, 0.5)
	dc.Pop()
}

func (r *Renderer) Render(d Data) ([]byte, error) {
	if d.StudentName == "" || d.CourseTitle == "" {
		return nil, fmt.Errorf("certificate requires student name and course title")
	}

	w, h := float64(r.Width), float64(r.Height)
	dc := gg.NewContext(r.Width, r.Height)

	dc.SetRGB(1, 1, 1)
	dc.Clear()

	// 边框
	dc.SetRGB(0.12, 0.23, 0.45)
	dc.SetLineWidth(12)
	dc.DrawRectangle(30, 30, w-60, h-60)
	dc.Stroke()
	dc.SetLineWidth(3)
	dc.DrawRectangle(60, 60, w-120, h-120)
	dc.Stroke()

	dc.SetFontFace(basicfont.Face7x13)

	dc.SetRGB(0.12, 0.23, 0.45)
	r.text(dc, "CERTIFICATE OF COMPLETION", h*0.18, 5)

	dc.SetRGB(0.3, 0.3, 0.3)
	r.text(dc, "This certifies that", h*0.32, 2.5)

	dc.SetRGB(0.05, 0.05, 0.05)
	r.text(dc, d.StudentName, h*0.42, 4.5)

	dc.SetRGB(0.3, 0.3, 0.3)
	r.text(dc, "has successfully completed the course", h*0.52, 2.5)

	dc.SetRGB(0.12, 0.23, 0.45)
	r.text(dc, d.CourseTitle, h*0.61, 3.5)

	dc.SetRGB(0.3, 0.3, 0.3)
	if d.InstructorName != "" {
		r.text(dc, "Instructor: "+d.InstructorName, h*0.71, 2)
	}
	if d.DurationMinutes > 0 {
		r.text(dc, fmt.Sprintf("Duration: %d minutes", d.DurationMinutes), h*0.76, 2)
	}

	issued := d.IssuedAt
	if issued.IsZero() {
		issued = time.Now()
	}
	r.text(dc, "Issued on "+issued.Format("January 2, 2006"), h*0.84, 2)
	r.text(dc, "Certificate No. "+d.CertificateNumber, h*0.88, 1.8)
	if d.Issuer != "" {
		r.text(dc, d.Issuer, h*0.92, 1.8)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
