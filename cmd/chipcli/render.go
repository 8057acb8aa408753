package main

import (
	"fmt"

	"github.com/pterm/pterm"

	"chiptrack/engine"
)

// renderSnapshot draws the whole table state: one box per seat, a
// center box for pot and phase, and the last action underneath.
func renderSnapshot(snap *engine.Snapshot, viewerID string) {
	var seatPanels []pterm.Panel
	for _, seat := range snap.Seats {
		seatPanels = append(seatPanels, pterm.Panel{Data: renderSeat(snap, seat, seat.PlayerID == viewerID)})
	}

	center := pterm.Panel{Data: renderBoard(snap)}

	rows := [][]pterm.Panel{{center}}
	if len(seatPanels) > 0 {
		rows = [][]pterm.Panel{seatPanels, {center}}
	}
	_ = pterm.DefaultPanel.WithPanels(rows).Render()

	if snap.LastAction != nil {
		rec := snap.LastAction
		pterm.Info.Printfln("Last action: %s by %s (%d)", rec.Type, nameOf(snap, rec.PlayerID), rec.Amount)
	}
	if snap.TurnSeat != engine.NoSeat {
		for _, seat := range snap.Seats {
			if seat.SeatNo == snap.TurnSeat {
				if seat.PlayerID == viewerID {
					pterm.Success.Println("It is your turn")
				} else {
					pterm.Info.Printfln("Waiting on %s (seat %d)", seat.Name, seat.SeatNo)
				}
			}
		}
	}
}

func renderSeat(snap *engine.Snapshot, seat engine.Seat, isViewer bool) string {
	hpadding := 2
	if isViewer {
		hpadding = 6
	}
	pbox := pterm.DefaultBox.WithLeftPadding(hpadding).WithRightPadding(hpadding).WithTopPadding(1).WithBottomPadding(1)

	title := fmt.Sprintf("%d %s", seat.SeatNo, seat.Name)
	if seat.SeatNo == snap.DealerSeat {
		title += " (D)"
	}

	var status string
	switch {
	case seat.SittingOut:
		status = pterm.Cyan("Sitting out")
	case seat.Folded:
		status = pterm.LightRed("Folded")
	case !seat.Active:
		status = pterm.LightYellow("All in")
	default:
		status = pterm.LightGreen("Active")
	}

	return pbox.WithTitle(title).WithTitleTopLeft().Sprintf("%s\nChips: %d\nRound bet: %d", status, seat.Chips, seat.RoundBet)
}

func renderBoard(snap *engine.Snapshot) string {
	pbox := pterm.DefaultBox.WithLeftPadding(4).WithRightPadding(4).WithTopPadding(1).WithBottomPadding(1)
	body := pterm.Sprintf("Pot: %d\nTo call: %d\nMin raise: %d", snap.Pot, snap.HighestBet, snap.MinRaise)
	return pbox.WithTitle(pterm.LightYellow("|" + string(snap.Phase) + "|")).WithTitleTopCenter().Sprintf(body)
}

func nameOf(snap *engine.Snapshot, playerID string) string {
	for _, seat := range snap.Seats {
		if seat.PlayerID == playerID {
			return seat.Name
		}
	}
	return playerID
}
