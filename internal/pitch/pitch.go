// Package pitch maps opaque participant identifiers onto stable pitch classes.
package pitch

// Classes is the number of pitch classes in an octave.
const Classes = 12

// Names lists pitch class labels, indexed by pitch class.
var Names = [Classes]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Hash is a 32-bit order-sensitive mixing hash over the bytes of id.
func Hash(id string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(id); i++ {
		h = h*31 + uint32(id[i])
		h ^= h >> 15
	}
	h ^= h >> 16
	h *= 0x7feb352d
	h ^= h >> 15
	h *= 0x846ca68b
	h ^= h >> 16
	return h
}

// Index returns the pitch class in [0, 11] assigned to id. The result depends
// only on id, so a participant keeps its note across reconnects.
func Index(id string) int {
	return int(Hash(id) % Classes)
}

// Name returns the label for a pitch class index, or "-" when out of range.
func Name(index int) string {
	if index < 0 || index >= Classes {
		return "-"
	}
	return Names[index]
}
