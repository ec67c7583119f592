// Package capture provides the microphone input source backed by the
// miniaudio bindings. It converts the device's float32 frames into
// fixed-size blocks and hands them to the engine callback.
package capture
