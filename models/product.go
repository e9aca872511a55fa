package models

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// ImageKind tags which variant a ProductImage holds
type ImageKind string

const (
	ImageNone   ImageKind = ""
	ImageURL    ImageKind = "url"
	ImageInline ImageKind = "inline"
)

// ProductImage is either nothing, an external URL, or inline bytes with a mime type
type ProductImage struct {
	Kind     ImageKind
	URL      string
	Data     []byte
	MimeType string
}

func NoImage() ProductImage {
	return ProductImage{Kind: ImageNone}
}

func ImageFromURL(url string) ProductImage {
	return ProductImage{Kind: ImageURL, URL: url}
}

func InlineImage(data []byte, mimeType string) ProductImage {
	return ProductImage{Kind: ImageInline, Data: data, MimeType: mimeType}
}

type productImageJSON struct {
	Kind     ImageKind `json:"kind"`
	URL      string    `json:"url,omitempty"`
	MimeType string    `json:"mimeType,omitempty"`
	Data     string    `json:"data,omitempty"`
}

// MarshalJSON encodes the none variant as null and the others as a tagged object
func (i ProductImage) MarshalJSON() ([]byte, error) {
	switch i.Kind {
	case ImageNone:
		return []byte("null"), nil
	case ImageURL:
		return json.Marshal(productImageJSON{Kind: ImageURL, URL: i.URL})
	case ImageInline:
		return json.Marshal(productImageJSON{
			Kind:     ImageInline,
			MimeType: i.MimeType,
			Data:     base64.StdEncoding.EncodeToString(i.Data),
		})
	}
	return nil, fmt.Errorf("unknown image kind %q", i.Kind)
}

func (i *ProductImage) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*i = NoImage()
		return nil
	}

	var raw productImageJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	switch raw.Kind {
	case ImageNone:
		*i = NoImage()
	case ImageURL:
		*i = ImageFromURL(raw.URL)
	case ImageInline:
		data, err := base64.StdEncoding.DecodeString(raw.Data)
		if err != nil {
			return fmt.Errorf("invalid inline image data: %w", err)
		}
		*i = InlineImage(data, raw.MimeType)
	default:
		return fmt.Errorf("unknown image kind %q", raw.Kind)
	}
	return nil
}

// Product is a global catalog entry. Products are created and deleted, never updated.
type Product struct {
	ID          string       `json:"id"`
	Name        string       `json:"name" validate:"required"`
	Description string       `json:"description" validate:"required"`
	Image       ProductImage `json:"image"`
	CreatedAt   int64        `json:"createdAt"` // Unix milliseconds
}
