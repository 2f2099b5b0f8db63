package model

// Location is a node of the location hierarchy. Group locations (buildings,
// wings) may be booked as a whole, which occupies every descendant.
type Location struct {
	ID       string `json:"id" bson:"_id"`
	Name     string `json:"name" bson:"name"`
	ParentID string `json:"parent_id,omitempty" bson:"parent_id,omitempty"`
	IsGroup  bool   `json:"is_group" bson:"is_group"`
	Bookable bool   `json:"bookable" bson:"bookable"`
	School   string `json:"school,omitempty" bson:"school,omitempty"`
}

// Instructor links a teaching role to the employee who fills it.
type Instructor struct {
	ID       string `json:"id" bson:"_id"`
	Name     string `json:"name" bson:"name"`
	Employee string `json:"employee,omitempty" bson:"employee,omitempty"`
}
