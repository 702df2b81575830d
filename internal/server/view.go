package server

import (
	"github.com/google/uuid"

	"github.com/greenfelt/holdem/internal/game"
	"github.com/greenfelt/holdem/poker"
)

// buildRoomView renders the room as one recipient is allowed to see it.
// Hole cards other than the recipient's own are omitted until reveal, which
// also attaches the evaluated hand label for every contesting seat.
func buildRoomView(room *game.Room, recipient uuid.UUID, reveal bool) RoomStateData {
	view := RoomStateData{
		RoomID:     room.ID.String(),
		Stage:      room.Stage.String(),
		Community:  append([]poker.Card{}, room.Community...),
		Pot:        room.Pot,
		CurrentBet: room.CurrentBet,
		MinRaise:   room.MinRaise,
		SmallBlind: room.Config.SmallBlind,
		BigBlind:   room.Config.BigBlind,
	}
	if room.Stage != game.NotEnoughPlayers {
		view.HandID = room.HandID.String()
	}
	for i, s := range room.Seats {
		sv := SeatView{
			PlayerID:    s.PlayerID.String(),
			Username:    s.Name,
			Stack:       s.Stack,
			Status:      s.Status.String(),
			Bet:         s.Bet,
			TotalBet:    s.HandBet,
			LastAction:  s.LastAction,
			IsConnected: s.Connected,
			IsDealer:    i == room.Button,
			IsTurn:      i == room.Turn,
		}
		show := s.PlayerID == recipient || (reveal && s.Contesting())
		if show && len(s.HoleCards) > 0 {
			sv.HoleCards = append([]poker.Card{}, s.HoleCards...)
		}
		if reveal && s.Contesting() && len(s.HoleCards) == 2 && len(room.Community) == 5 {
			cards := append(append([]poker.Card{}, s.HoleCards...), room.Community...)
			sv.HandLabel = poker.Evaluate7(cards).String()
		}
		view.Seats = append(view.Seats, sv)
	}
	return view
}
