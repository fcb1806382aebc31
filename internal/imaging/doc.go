// Package imaging provides the image processing behind tracing: decoding
// uploaded pictures, turning them into edge maps, and compositing an overlay
// onto a camera frame.
//
// All operations work with standard Go image.Image types and use a coordinate
// system where (0,0) is at the top-left corner, X increases rightward, and Y
// increases downward.
//
// # Edge Maps
//
// ExtractEdges normalizes the source (grayscale, then a contrast boost) and
// compares every interior pixel with its four direct neighbors:
//
//	diff = |p-c| + |n-c| + |w-c| + |e-c|
//
// where c is the center intensity and p, n, w, e are the pixels above, below,
// left and right. A pixel whose diff exceeds the threshold becomes opaque
// black (0,0,0,255); every other pixel, including the one-pixel border, is
// transparent white (255,255,255,0). The result is a *image.NRGBA of the
// same size as the source, anchored at (0,0).
//
// Extraction is deterministic and keeps no state between calls, so it is safe
// to run concurrently on different images.
//
// # Ingestion
//
// Decode accepts PNG, JPEG, GIF, WebP, BMP and TIFF and applies EXIF
// orientation. EncodePNG is the only output format since edge maps need alpha.
// Failures are reported as *DecodeError and *EncodeError.
//
// # Compositing
//
// Compose renders an overlay through an overlay.Transform onto a backdrop,
// drawing alignment guides while the transform is unlocked.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Individual image operations
// are stateless and can be called concurrently on different images.
//
// # Caching
//
// ImageCache holds at most MaxCachedImages decoded files. Camera frames and
// path-based extraction requests share one cache; an entry is only reused
// while its file's size and modification time are unchanged.
package imaging
