// Package siteconfig holds the contractor's site configuration document and
// the incremental extractor that pulls it out of streamed assistant text.
package siteconfig

import (
	"encoding/json"
	"fmt"
)

// Well-known top-level fields. The document is partial by construction, so
// any subset may be present and unknown fields are carried through as-is.
const (
	FieldBusinessName    = "businessName"
	FieldTagline         = "tagline"
	FieldPhone           = "phone"
	FieldEmail           = "email"
	FieldYearsInBusiness = "yearsInBusiness"
	FieldHeroHeadline    = "heroHeadline"
	FieldHeroSubheadline = "heroSubheadline"
	FieldServices        = "services"
	FieldServiceAreas    = "serviceAreas"
	FieldLicenseNumber   = "licenseNumber"
	FieldCertifications  = "certifications"
	FieldTestimonials    = "testimonials"
	FieldGallery         = "gallery"
	FieldDifferentiator  = "differentiator"
)

// SiteConfig is a site configuration document keyed by field name.
type SiteConfig map[string]any

// Parse decodes a JSON object into a SiteConfig.
func Parse(data []byte) (SiteConfig, error) {
	var cfg SiteConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid site config: %w", err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("invalid site config: not an object")
	}
	return cfg, nil
}

// Merge returns a new document with update's keys shallow-overwriting base's.
// List-valued fields are replaced wholesale, never merged element-wise.
func Merge(base, update SiteConfig) SiteConfig {
	out := make(SiteConfig, len(base)+len(update))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range update {
		out[k] = v
	}
	return out
}

// String returns the indented JSON form used when seeding prompts.
func (c SiteConfig) String() string {
	if c == nil {
		return "{}"
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

// BusinessName returns the businessName field when it is a string.
func (c SiteConfig) BusinessName() string {
	s, _ := c[FieldBusinessName].(string)
	return s
}
