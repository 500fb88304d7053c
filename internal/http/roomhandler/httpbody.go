package roomhandler

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse

type ListRoomsQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=idle running ended"`
} // @name ListRoomsQuery
