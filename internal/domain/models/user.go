package models

import "time"

// User is an account able to shop or, when staff, manage the back office.
type User struct {
	ID           int64     `bson:"_id" json:"id"`
	Username     string    `bson:"username" json:"username"`
	Email        string    `bson:"email" json:"email"`
	IsStaff      bool      `bson:"is_staff" json:"is_staff"`
	IsSuperuser  bool      `bson:"is_superuser" json:"is_superuser"`
	CompanyName  string    `bson:"company_name" json:"company_name"`
	PasswordHash string    `bson:"password_hash" json:"-"`
	CreatedAt    time.Time `bson:"created_at" json:"-"`
}

// AuthToken is an opaque bearer credential issued on login.
type AuthToken struct {
	Key       string    `bson:"_id" json:"key"`
	UserID    int64     `bson:"user_id" json:"-"`
	CreatedAt time.Time `bson:"created_at" json:"-"`
}

// RegisterRequest is the body of the registration call.
type RegisterRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	CompanyName string `json:"company_name"`
	Password1   string `json:"password1"`
	Password2   string `json:"password2"`
}

// LoginRequest is the body of the login call.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
