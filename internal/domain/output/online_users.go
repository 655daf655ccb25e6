package output

// OnlineUserInfo содержит информацию об онлайн пользователе
type OnlineUserInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}
