package mcpserver

// DrawingGuide describes the coordinate system, stroke format, and
// generation workflow that LLM consumers should follow when drawing.
const DrawingGuide = `# Easel Drawing Guide

Every board is a fixed-size raster canvas. Read this before drawing.

## Coordinate system

- Origin is the TOP-LEFT corner. x grows right, y grows down.
- Coordinates are raster-space pixels within the board's width × height
  (see the board's ` + "`" + `width` + "`" + ` and ` + "`" + `height` + "`" + ` from list_boards or create_board).
- Points outside the canvas are clipped, not rejected.

## Strokes

- One ` + "`" + `draw_stroke` + "`" + ` call is ONE continuous gesture (pen down → pen up)
  and ONE undo step. Batch the whole line into a single call; do not
  send one call per point.
- ` + "`" + `points` + "`" + ` is a JSON array: ` + "`" + `[{"x":10,"y":20},{"x":30,"y":40}]` + "`" + `.
  A single point draws a dot. Consecutive points are joined with
  round-capped line segments.
- ` + "`" + `color` + "`" + ` is ` + "`" + `#rrggbb` + "`" + `; ` + "`" + `width` + "`" + ` is in pixels. Both default to the
  board pen (change it with ` + "`" + `set_pen` + "`" + `).
- The background is white. Clearing fills with white and is itself an
  undo step.

## History

- Every committed gesture, clear, import, and generation is one snapshot.
- ` + "`" + `undo_board` + "`" + ` / ` + "`" + `redo_board` + "`" + ` walk the snapshots. Drawing after an undo
  discards the redo branch.

## Generation workflow

1. Sketch rough shapes with ` + "`" + `draw_stroke` + "`" + ` (composition matters more
   than precision; the model reads the sketch as guidance).
2. Call ` + "`" + `generate_image` + "`" + ` with a concrete prompt. The call blocks until
   the service responds; one generation per board at a time.
3. The result replaces the board content as a single snapshot — the
   sketch stays one ` + "`" + `undo_board` + "`" + ` away.
4. Check the outcome with ` + "`" + `view_board` + "`" + `; iterate by drawing on top of
   the generated image and generating again.

## Import & export

- ` + "`" + `import_image` + "`" + ` places an external image (http(s) URL or base64 data
  URI) as the board's base layer, scaled to fit with letterboxing.
- ` + "`" + `export_board` + "`" + ` saves the current raster into the gallery as a PNG.
`
