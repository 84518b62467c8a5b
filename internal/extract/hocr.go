package extract

import (
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// parseHOCR extracts line-level text and geometry from Tesseract hOCR
// output. Each ocr_line element carries a bbox in its title attribute;
// word confidences come from the x_wconf field of its ocrx_word children.
func parseHOCR(hocr string) ([]OCRLine, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(hocr))
	if err != nil {
		return nil, fmt.Errorf("extract: parse hocr: %w", err)
	}

	var lines []OCRLine
	doc.Find(".ocr_line, .ocr_caption, .ocr_header, .ocr_textfloat").Each(func(_ int, sel *goquery.Selection) {
		bbox, ok := titleBBox(sel.AttrOr("title", ""))
		if !ok {
			return
		}

		var words []string
		var confSum float64
		var confCount int
		sel.Find(".ocrx_word").Each(func(_ int, w *goquery.Selection) {
			text := strings.TrimSpace(w.Text())
			if text == "" {
				return
			}
			words = append(words, text)
			if conf, ok := titleWordConf(w.AttrOr("title", "")); ok {
				confSum += conf
				confCount++
			}
		})
		if len(words) == 0 {
			return
		}

		line := OCRLine{
			Text: strings.Join(words, " "),
			BBox: bbox,
		}
		if confCount > 0 {
			line.Confidence = confSum / float64(confCount)
		}
		lines = append(lines, line)
	})
	return lines, nil
}

// titleBBox parses "bbox x0 y0 x1 y1" out of an hOCR title attribute.
func titleBBox(title string) (image.Rectangle, bool) {
	for _, field := range strings.Split(title, ";") {
		field = strings.TrimSpace(field)
		if !strings.HasPrefix(field, "bbox ") {
			continue
		}
		parts := strings.Fields(field)
		if len(parts) != 5 {
			return image.Rectangle{}, false
		}
		coords := make([]int, 4)
		for i, p := range parts[1:] {
			v, err := strconv.Atoi(p)
			if err != nil {
				return image.Rectangle{}, false
			}
			coords[i] = v
		}
		return image.Rect(coords[0], coords[1], coords[2], coords[3]), true
	}
	return image.Rectangle{}, false
}

// titleWordConf parses "x_wconf 95" out of an hOCR title attribute.
func titleWordConf(title string) (float64, bool) {
	for _, field := range strings.Split(title, ";") {
		field = strings.TrimSpace(field)
		if !strings.HasPrefix(field, "x_wconf ") {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(field, "x_wconf ")), 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}
	return 0, false
}
