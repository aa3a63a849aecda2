package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Actor is the resolved caller of an operation.
type Actor struct {
	ID   primitive.ObjectID
	Role string
	Name string
}

func (a Actor) IsStudent() bool { return a.Role == RoleStudent }
func (a Actor) IsMentor() bool  { return a.Role == RoleMentor }
func (a Actor) IsAdmin() bool   { return a.Role == RoleAdmin }
