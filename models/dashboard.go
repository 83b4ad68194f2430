package models

type DashboardStats struct {
	UsersTotal    int `json:"users_total"`
	ActivePlayers int `json:"active_players"`
	MatchesTotal  int `json:"matches_total"`
	MatchesToday  int `json:"matches_today"`
}
