package sim

import "time"

const (
	KillReward       = 100 // score per kill
	KillCoins        = 1
	RespawnDelay     = 2 * time.Second
	RotationInterval = 10 * time.Second
	KillFeedSize     = 26

	PlayerRadius      = 10.0 // fixed hit radius added to projectile radius
	MoveMargin        = 30.0 // players stay this far inside the arena edge
	MoveBuffer        = 14.0 // obstacle buffer for movement
	SpawnBuffer       = 20.0 // obstacle buffer for spawn points
	ProjectileMargin  = 50.0 // projectiles die this far outside the arena
	MuzzleOffset      = 18.0
	BaseSpeed         = 3.0 // max accepted intent length per tick
	SpeedMultiplier   = 1.8
	KnockbackPush     = 120.0
	KnockbackKillDist = 40.0
	FreezeKillDist    = 30.0
)

// AbilityKind identifies one of the rotating abilities
type AbilityKind string

const (
	AbilityDash      AbilityKind = "dash"
	AbilityBlink     AbilityKind = "blink"
	AbilityKnockback AbilityKind = "knockback"
	AbilityShield    AbilityKind = "shield"
	AbilitySpeed     AbilityKind = "speed"
	AbilityGravity   AbilityKind = "gravity"
	AbilityFreeze    AbilityKind = "freeze"
)

// AbilityDef is an immutable catalog entry
type AbilityDef struct {
	Kind     AbilityKind   `json:"id"`
	Name     string        `json:"name"`
	Cooldown time.Duration `json:"-"`
	Duration time.Duration `json:"-"`
	Range    float64       `json:"range"`
}

var abilityCatalog = []AbilityDef{
	{Kind: AbilityDash, Name: "Dash", Cooldown: 1500 * time.Millisecond, Duration: 200 * time.Millisecond, Range: 120},
	{Kind: AbilityBlink, Name: "Blink", Cooldown: 3000 * time.Millisecond, Range: 160},
	{Kind: AbilityKnockback, Name: "Knockback", Cooldown: 2500 * time.Millisecond, Range: 120},
	{Kind: AbilityShield, Name: "Shield", Cooldown: 4000 * time.Millisecond, Duration: 2000 * time.Millisecond},
	{Kind: AbilitySpeed, Name: "Speed Boost", Cooldown: 3500 * time.Millisecond, Duration: 1500 * time.Millisecond},
	{Kind: AbilityGravity, Name: "Gravity Flip", Cooldown: 5000 * time.Millisecond, Duration: 1200 * time.Millisecond, Range: 220},
	{Kind: AbilityFreeze, Name: "Freeze", Cooldown: 4000 * time.Millisecond, Duration: 900 * time.Millisecond, Range: 100},
}

// Abilities returns a copy of the ability catalog in draw order
func Abilities() []AbilityDef {
	out := make([]AbilityDef, len(abilityCatalog))
	copy(out, abilityCatalog)
	return out
}

// LookupAbility returns the catalog entry for kind
func LookupAbility(kind AbilityKind) (AbilityDef, bool) {
	for _, a := range abilityCatalog {
		if a.Kind == kind {
			return a, true
		}
	}
	return AbilityDef{}, false
}

// WeaponKind identifies a weapon in the shop catalog
type WeaponKind string

const (
	WeaponPistol  WeaponKind = "pistol"
	WeaponShotgun WeaponKind = "shotgun"
	WeaponRifle   WeaponKind = "rifle"
	WeaponSniper  WeaponKind = "sniper"
)

// WeaponDef is an immutable catalog entry. Speed is in units per tick.
type WeaponDef struct {
	Kind     WeaponKind    `json:"id"`
	Name     string        `json:"name"`
	Cooldown time.Duration `json:"-"`
	Speed    float64       `json:"speed"`
	TTL      time.Duration `json:"-"`
	Radius   float64       `json:"radius"`
	Pellets  int           `json:"bullets"`
	Spread   float64       `json:"spread"`
	Price    int           `json:"price"`
}

var weaponCatalog = map[WeaponKind]WeaponDef{
	WeaponPistol:  {Kind: WeaponPistol, Name: "Pistol", Cooldown: 400 * time.Millisecond, Speed: 9, TTL: 2000 * time.Millisecond, Radius: 6, Pellets: 1},
	WeaponShotgun: {Kind: WeaponShotgun, Name: "Shotgun", Cooldown: 900 * time.Millisecond, Speed: 8, TTL: 800 * time.Millisecond, Radius: 6, Pellets: 5, Spread: 0.6, Price: 5},
	WeaponRifle:   {Kind: WeaponRifle, Name: "Rifle", Cooldown: 250 * time.Millisecond, Speed: 12, TTL: 2500 * time.Millisecond, Radius: 4, Pellets: 1, Price: 8},
	WeaponSniper:  {Kind: WeaponSniper, Name: "Sniper", Cooldown: 1400 * time.Millisecond, Speed: 18, TTL: 4000 * time.Millisecond, Radius: 5, Pellets: 1, Price: 12},
}

// LookupWeapon returns the catalog entry for kind
func LookupWeapon(kind WeaponKind) (WeaponDef, bool) {
	w, ok := weaponCatalog[kind]
	return w, ok
}

// Weapons returns the shop catalog ordered by price
func Weapons() []WeaponDef {
	return []WeaponDef{
		weaponCatalog[WeaponPistol],
		weaponCatalog[WeaponShotgun],
		weaponCatalog[WeaponRifle],
		weaponCatalog[WeaponSniper],
	}
}

// Team groups players in team modes. TeamNone never matches anyone.
type Team int

const (
	TeamNone Team = 0
	TeamRed  Team = 1
	TeamBlue Team = 2
)

// Allied reports whether two teams block friendly fire between them
func (t Team) Allied(other Team) bool {
	return t != TeamNone && t == other
}
