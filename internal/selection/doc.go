// Package selection chooses which pool images become thumbnail candidates.
//
// Four tiers run in order and the run stops as soon as the candidate cap is
// reached:
//
//  1. Numeric references: "foto 1 y foto 3" composites exactly those photos.
//  2. Keywords: description tokens matched against file names, in windows
//     of up to four consecutive tokens.
//  3. Singles: up to four images not claimed above, shown on their own.
//  4. Random filler: random 2-4 image composites labeled with a style.
//
// Images used by tiers 1 and 2 are claimed and excluded from every later
// tier. Singles are not claimed. Per-run state is threaded through the
// tiers as a State value.
package selection
