package rules

func Survival() *Rules {
	return &Rules{
		Name:            "survival",
		WorldHalfExtent: 25,
		StartingResources: map[string]int{
			"ammo": 5,
		},
		Player: PlayerDef{
			MaxHealth:         100,
			Speed:             0.15,
			Damage:            10,
			AttackRange:       2.5,
			AttackCooldownMS:  400,
			GunMultiplier:     3,
			AmmoPerSwing:      1,
			InvulnerableMS:    1000,
			InteractionRadius: 3,
		},
		Hostiles: map[string]HostileDef{
			"wolf": {
				MaxHealth:        30,
				Speed:            0.1,
				ViewRange:        15,
				AttackRange:      3,
				Damage:           5,
				AttackCooldownMS: 1000,
				WanderChance:     0.02,
				WanderFactor:     0.5,
				WanderRadius:     5,
				Reward:           Reward{Resources: map[string]int{"meat": 2}, Experience: 10},
			},
			"bear": {
				MaxHealth:        80,
				Speed:            0.07,
				ViewRange:        10,
				AttackRange:      3.5,
				Damage:           15,
				AttackCooldownMS: 1500,
				WanderChance:     0.01,
				WanderFactor:     0.5,
				WanderRadius:     4,
				Reward:           Reward{Resources: map[string]int{"meat": 5}, Experience: 30},
			},
		},
		Follower: FollowerDef{
			MaxHealth:         50,
			Speed:             0.12,
			Damage:            8,
			AttackCooldownMS:  800,
			AggroRadius:       5,
			FollowDistanceMin: 2,
			FollowDistanceMax: 4,
		},
		Worker: WorkerDef{
			MaxHealth:     20,
			Speed:         0.02,
			ArriveEpsilon: 0.1,
			GatherChance:  0.01,
		},
		Harvestables: map[string]HarvestableDef{
			"tree": {
				MaxHealth: 20,
				Reward:    Reward{Resources: map[string]int{"wood": 3}, Experience: 1},
			},
			"supply_crate": {
				MaxHealth: 10,
				Reward:    Reward{Resources: map[string]int{"money": 15, "ammo": 5}},
			},
		},
		Buildings: map[string]BuildingDef{
			"market": {
				MaxHealth: 100,
				Transaction: &Transaction{
					Kind: TxTrade, Cost: map[string]int{"meat": 2}, Payout: map[string]int{"money": 10},
				},
			},
			"lumber_mill": {
				MaxHealth: 100,
				Transaction: &Transaction{
					Kind: TxTrade, Cost: map[string]int{"wood": 5}, Payout: map[string]int{"money": 8},
				},
			},
			"barracks": {
				MaxHealth: 100,
				Transaction: &Transaction{
					Kind: TxRecruit, Cost: map[string]int{"money": 50}, Spawn: "follower",
				},
			},
			"armory": {
				MaxHealth: 100,
				Transaction: &Transaction{
					Kind: TxTrade, Cost: map[string]int{"money": 20}, Payout: map[string]int{"ammo": 10},
				},
			},
			"campfire": {
				MaxHealth: 50,
				Cost:      map[string]int{"wood": 2},
				Transaction: &Transaction{
					Kind: TxHeal, Cost: map[string]int{"meat": 1}, Heal: 25,
				},
			},
		},
		Spawns: []SpawnDef{
			{Kind: "player", X: 0, Z: 2},
			{Kind: "building", Type: "campfire", X: 0, Z: 0},
			{Kind: "building", Type: "market", X: -4, Z: -4},
			{Kind: "building", Type: "lumber_mill", X: 4, Z: 4},
			{Kind: "building", Type: "barracks", X: 0, Z: 6},
			{Kind: "building", Type: "armory", X: -4, Z: 4},
			{Kind: "harvestable", Type: "tree", X: 8, Z: 3},
			{Kind: "harvestable", Type: "tree", X: -6, Z: 7},
			{Kind: "harvestable", Type: "tree", X: 5, Z: -8},
			{Kind: "harvestable", Type: "tree", X: -10, Z: -2},
			{Kind: "harvestable", Type: "tree", X: 3, Z: 9},
			{Kind: "harvestable", Type: "tree", X: -7, Z: -6},
			{Kind: "harvestable", Type: "supply_crate", X: 12, Z: -4},
			{Kind: "harvestable", Type: "supply_crate", X: -12, Z: 10},
			{Kind: "hostile", Type: "wolf", X: 18, Z: 0},
			{Kind: "hostile", Type: "wolf", X: -18, Z: 3},
			{Kind: "hostile", Type: "wolf", X: 2, Z: 18},
			{Kind: "hostile", Type: "wolf", X: -3, Z: -18},
			{Kind: "hostile", Type: "bear", X: 16, Z: 16},
		},
	}
}

// Economy is the building-economy variant: no hostiles, a worker to assign,
// and buildings bought with wood.
func Economy() *Rules {
	return &Rules{
		Name:            "economy",
		WorldHalfExtent: 15,
		StartingResources: map[string]int{
			"wood": 15,
			"food": 10,
		},
		Player: PlayerDef{
			MaxHealth:         100,
			Speed:             0.15,
			Damage:            10,
			AttackRange:       2.5,
			AttackCooldownMS:  400,
			GunMultiplier:     1,
			InvulnerableMS:    1000,
			InteractionRadius: 3,
		},
		Hostiles: map[string]HostileDef{},
		Follower: FollowerDef{
			MaxHealth:         50,
			Speed:             0.12,
			Damage:            8,
			AttackCooldownMS:  800,
			AggroRadius:       5,
			FollowDistanceMin: 2,
			FollowDistanceMax: 4,
		},
		Worker: WorkerDef{
			MaxHealth:     20,
			Speed:         0.02,
			ArriveEpsilon: 0.1,
			GatherChance:  0.01,
		},
		Harvestables: map[string]HarvestableDef{
			"tree": {
				MaxHealth: 20,
				Reward:    Reward{Resources: map[string]int{"wood": 3}, Experience: 1},
			},
		},
		Buildings: map[string]BuildingDef{
			"worker_station": {
				MaxHealth: 100,
				Cost:      map[string]int{"wood": 5},
				Capacity:  3,
				Produces:  map[string]int{"food": 1},
				Transaction: &Transaction{
					Kind: TxRecruit, Cost: map[string]int{"food": 5}, Spawn: "worker",
				},
			},
			"lumberjack": {
				MaxHealth: 100,
				Cost:      map[string]int{"wood": 3},
				Capacity:  2,
				Produces:  map[string]int{"wood": 1},
			},
			"storage": {
				MaxHealth: 100,
				Cost:      map[string]int{"wood": 8},
				Capacity:  1,
			},
			"campfire": {
				MaxHealth: 50,
				Cost:      map[string]int{"wood": 2},
				Capacity:  1,
				Transaction: &Transaction{
					Kind: TxHeal, Cost: map[string]int{"food": 1}, Heal: 25,
				},
			},
		},
		ManualGather: map[string]int{
			"wood": 5,
			"food": 5,
		},
		Spawns: []SpawnDef{
			{Kind: "player", X: 0, Z: 2},
			{Kind: "building", Type: "campfire", X: 0, Z: 0},
			{Kind: "building", Type: "worker_station", X: -4, Z: -4},
			{Kind: "building", Type: "lumberjack", X: 4, Z: 4},
			{Kind: "building", Type: "storage", X: 0, Z: 6},
			{Kind: "worker", X: -2, Z: -2},
			{Kind: "harvestable", Type: "tree", X: 8, Z: 3},
			{Kind: "harvestable", Type: "tree", X: -6, Z: 7},
			{Kind: "harvestable", Type: "tree", X: 5, Z: -8},
			{Kind: "harvestable", Type: "tree", X: -10, Z: -2},
			{Kind: "harvestable", Type: "tree", X: 3, Z: 9},
			{Kind: "harvestable", Type: "tree", X: -7, Z: -6},
		},
	}
}
