// Command thumbgen generates thumbnail candidates from local files.
//
// It runs the same engine as the server once and writes every candidate
// to the output directory as <id><ext>:
//
//	thumbgen -d "foto 1 y foto 3, playa" -out ./thumbs a.jpg b.jpg c.jpg
//	thumbgen -video clip.mp4 -preset youtube -format webp -out ./thumbs
//
// When stdout is a terminal a summary table is printed; otherwise one
// written path per line, which is convenient for scripting.
//
// Engine settings (MAX_CANDIDATES, FFMPEG_PATH, TEMP_DIR and so on) are
// read from the environment like the server does.
package main
