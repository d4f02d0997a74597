// Package denoise provides noise profile capture and best-effort per-frame
// suppression. The spectral transform itself is a boundary: suppression
// converts frames to the transform's normalized float domain, applies it with
// the learned profile, and converts back. Any failure degrades to
// pass-through so suppression can never stall the pipeline.
package denoise
