package sim

import "sort"

// Store holds players by connection id and the ordered projectile list.
// It has no rules of its own; only the owning World mutates it.
type Store struct {
	players     map[string]*Player
	projectiles []*Projectile
}

// NewStore creates an empty Store
func NewStore() *Store {
	return &Store{players: make(map[string]*Player)}
}

// AddPlayer inserts or replaces a player
func (s *Store) AddPlayer(p *Player) {
	s.players[p.ID] = p
}

// RemovePlayer deletes a player; projectiles it owns are left alone
func (s *Store) RemovePlayer(id string) {
	delete(s.players, id)
}

// Player looks up a player by id
func (s *Store) Player(id string) (*Player, bool) {
	p, ok := s.players[id]
	return p, ok
}

// Players returns all players ordered by id
func (s *Store) Players() []*Player {
	list := make([]*Player, 0, len(s.players))
	for _, p := range s.players {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// PlayerCount returns the number of players
func (s *Store) PlayerCount() int {
	return len(s.players)
}

// AppendProjectile adds a projectile at the end of the list
func (s *Store) AppendProjectile(pr *Projectile) {
	s.projectiles = append(s.projectiles, pr)
}

// RemoveProjectile removes the projectile at index i, keeping order
func (s *Store) RemoveProjectile(i int) {
	if i < 0 || i >= len(s.projectiles) {
		return
	}
	copy(s.projectiles[i:], s.projectiles[i+1:])
	s.projectiles[len(s.projectiles)-1] = nil
	s.projectiles = s.projectiles[:len(s.projectiles)-1]
}

// Projectiles returns the live projectile list (not a copy)
func (s *Store) Projectiles() []*Projectile {
	return s.projectiles
}
