// Package level converts raw audio blocks into loudness estimates. Each
// block yields an instantaneous RMS level in dBFS and updates a single
// exponentially smoothed level that the segmentation logic compares
// against its thresholds.
package level
