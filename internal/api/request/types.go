package request

// RegisterRequest is the request body for registering a player
type RegisterRequest struct {
	Nickname string `json:"nickname"`
}

// CreateGameRequest is the request body for creating a game
type CreateGameRequest struct {
	Name string `json:"name"`
}
