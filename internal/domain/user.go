package domain

type User struct {
	Username string
	Password string
	RealName string
	Phone    string
}
