// Package layout composites one to four decoded images into a single
// fixed-size preview.
//
// The grid depends only on the image count (1x1, 1x2, 1x3, 2x2). Each
// image is scaled to fit its cell without cropping and centered, leaving
// background-coloured bars where the aspect ratios differ.
package layout
