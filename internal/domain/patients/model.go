package patients

import "time"

type Sex string

const (
	SexUnknown Sex = "unknown"
	SexMale    Sex = "male"
	SexFemale  Sex = "female"
)

// Patient es la ficha clínica. UserID vacío = paciente sin cuenta (walk-in).
type Patient struct {
	ID     string
	UserID string

	FirstName string
	LastName  string
	Email     string
	Phone     string

	BirthDate *time.Time
	Sex       Sex
	Address   string
	Notes     string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p Patient) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}
