package core

import "math"

// Vector2 is a two-component float vector.
type Vector2 struct {
	X, Y float32
}

// Vector3 is a three-component float vector.
type Vector3 struct {
	X, Y, Z float32
}

// Vector4 is a four-component float vector.
type Vector4 struct {
	X, Y, Z, W float32
}

// Color is an RGBA color with components in the 0-1 range.
type Color struct {
	R, G, B, A float32
}

// Quaternion is a rotation. The zero value is not a valid rotation; use
// IdentityQuaternion when a neutral rotation is needed.
type Quaternion struct {
	X, Y, Z, W float32
}

// IdentityQuaternion is the rotation that leaves vectors unchanged.
var IdentityQuaternion = Quaternion{W: 1}

// QuaternionFromEuler builds a rotation from Euler angles in degrees,
// rotating around Z first, then X, then Y.
func QuaternionFromEuler(x, y, z float32) Quaternion {
	const half = math.Pi / 360 // degrees to radians, halved

	sx, cx := math.Sincos(float64(x) * half)
	sy, cy := math.Sincos(float64(y) * half)
	sz, cz := math.Sincos(float64(z) * half)

	return Quaternion{
		X: float32(cy*sx*cz + sy*cx*sz),
		Y: float32(sy*cx*cz - cy*sx*sz),
		Z: float32(cy*cx*sz - sy*sx*cz),
		W: float32(cy*cx*cz + sy*sx*sz),
	}
}

// namedColors is the small lookup used when a color cell is a word.
var namedColors = map[string]Color{
	"white":   {1, 1, 1, 1},
	"black":   {0, 0, 0, 1},
	"red":     {1, 0, 0, 1},
	"green":   {0, 1, 0, 1},
	"blue":    {0, 0, 1, 1},
	"yellow":  {1, 0.92156863, 0.015686275, 1},
	"cyan":    {0, 1, 1, 1},
	"magenta": {1, 0, 1, 1},
	"gray":    {0.5, 0.5, 0.5, 1},
	"grey":    {0.5, 0.5, 0.5, 1},
	"orange":  {1, 0.64705884, 0, 1},
	"clear":   {0, 0, 0, 0},
}
