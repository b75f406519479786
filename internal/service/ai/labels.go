package ai

import "fmt"

// Classes are the road damage categories in model class-id order.
var Classes = []string{
	"Longitudinal Crack",
	"Transverse Crack",
	"Alligator Crack",
	"Potholes",
}

// Label maps a model class ID to a human-readable label.
func Label(classID int) string {
	if classID >= 0 && classID < len(Classes) {
		return Classes[classID]
	}
	return fmt.Sprintf("unknown_%d", classID)
}
