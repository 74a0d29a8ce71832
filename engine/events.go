package engine

import (
	"encoding/binary"
	"math"

	"github.com/tiledforward/forwardplus/engine/camera"
)

// RenderEventType identifies the events carried from the UI thread to the
// render thread through the event queue.
type RenderEventType uint32

const (
	// EventUpdateCameraTransform carries an absolute camera pose.
	EventUpdateCameraTransform RenderEventType = iota

	// EventFence carries a fence handle for a rendezvous.
	EventFence

	// EventPause pauses or resumes the render loop.
	EventPause

	// EventResizeWindow carries a new swap-chain size.
	EventResizeWindow

	// EventSetWindowFullscreenState records the window's fullscreen state.
	EventSetWindowFullscreenState

	// EventToggleLightDebugRendering flips the light volume overlay.
	EventToggleLightDebugRendering
)

// Payloads are fixed-size little-endian encodings; the queue carries raw
// bytes, so decoding never depends on buffer alignment.

func encodeCameraTransform(u camera.TransformUpdate) []byte {
	buf := make([]byte, 20)
	binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(u.Position[0]))
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(u.Position[1]))
	binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(u.Position[2]))
	binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(u.Rotation[0]))
	binary.LittleEndian.PutUint32(buf[16:], math.Float32bits(u.Rotation[1]))
	return buf
}

func decodeCameraTransform(data []byte) camera.TransformUpdate {
	f := func(off int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
	}
	return camera.TransformUpdate{
		Position: [3]float32{f(0), f(4), f(8)},
		Rotation: [2]float32{f(12), f(16)},
	}
}

func encodeWindowSize(width, height uint32) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:], width)
	binary.LittleEndian.PutUint32(buf[4:], height)
	return buf
}

func decodeWindowSize(data []byte) (width, height uint32) {
	return binary.LittleEndian.Uint32(data[0:]), binary.LittleEndian.Uint32(data[4:])
}

func encodeBool(value bool) []byte {
	buf := make([]byte, 4)
	if value {
		binary.LittleEndian.PutUint32(buf, 1)
	}
	return buf
}

func decodeBool(data []byte) bool {
	return binary.LittleEndian.Uint32(data) != 0
}

func encodeFenceHandle(handle uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, handle)
	return buf
}

func decodeFenceHandle(data []byte) uint64 {
	return binary.LittleEndian.Uint64(data)
}
