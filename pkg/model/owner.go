package model

// OwnerRef identifies whoever a schedule belongs to: a person, a room, a
// resource. Type namespaces ID.
type OwnerRef struct {
	Type string `json:"type" bson:"type" validate:"required,min=1,max=64"`
	ID   string `json:"id" bson:"id" validate:"required,min=1,max=128"`
}

// ScheduleOwner is anything that owns availabilities, occurrences, slots
// and bookings.
type ScheduleOwner interface {
	ScheduleOwnerRef() OwnerRef
}

func (o OwnerRef) ScheduleOwnerRef() OwnerRef {
	return o
}

// Key is the stable string form, used for lock names and message keys.
func (o OwnerRef) Key() string {
	return o.Type + ":" + o.ID
}

func (o OwnerRef) IsZero() bool {
	return o.Type == "" && o.ID == ""
}

func (o OwnerRef) String() string {
	return o.Key()
}
