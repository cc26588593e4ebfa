// Package export renders candidate previews at social-media sizes and
// encodes them as JPEG, PNG or WebP.
package export
