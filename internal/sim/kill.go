package sim

import "time"

// Kill runs the kill protocol. It is a no-op (returning false) when the
// victim is missing or already dead, is the killer's teammate, or is
// shielded. killerID may name a player that has since left; the victim still
// dies but nobody is credited.
func (w *World) Kill(killerID, victimID string, now time.Time) bool {
	victim, ok := w.store.Player(victimID)
	if !ok || !victim.Alive {
		return false
	}
	killer, hasKiller := w.store.Player(killerID)
	if hasKiller && killer.Team.Allied(victim.Team) {
		return false
	}
	if victim.Shielded(now) {
		return false
	}

	victim.Alive = false
	victim.stop()
	victim.Deaths++

	ev := KillEvent{Killer: killerID, Victim: victim.ID, VictimName: victim.Name, At: now}
	if hasKiller {
		killer.Score += KillReward
		killer.Kills++
		killer.Coins += KillCoins
		ev.KillerName = killer.Name
	}

	w.feed = append([]KillEvent{ev}, w.feed...)
	if len(w.feed) > KillFeedSize {
		w.feed = w.feed[:KillFeedSize]
	}
	w.pending.kills = append(w.pending.kills, ev)
	w.respawns.Schedule(victim.ID, now)
	return true
}
