package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jwebster45206/adventure-engine/internal/sessions"
	"github.com/jwebster45206/adventure-engine/pkg/adventure"
)

var (
	errNoAdventure = errors.New("no adventure loaded")
	errSurgeLocked = errors.New("the surge holds everyone in place; dismiss it first")
)

const helpText = `Commands:
• <resource> +N / -N   Change a resource (clamped to its max)
• <resource> =N        Set a resource exactly
• <resource> reset     Restore a resource to its initial value
• next                 Advance the turn
• rewind N             Restore the snapshot of turn N
• step                 Pass the action to the next combatant
• front <id>           Move a combatant to the front of the queue
• remove <id>          Remove a combatant from the queue
• order <id,id,...>    Reorder the queue
• encounter            Start a new encounter
• party <name,name>    Muster the real-life party
• dismiss              Dismiss the active surge
• drawer               Toggle the queue drawer
• copy                 Copy the session id to the clipboard
• reset                End the session and pick a new adventure
• help                 Show this help
`

// execute runs one engine command against the session and returns a short
// status line.
func execute(s *sessions.Session, input string) (string, error) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return "", nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]
	e := s.Engine

	if surge := e.ActiveSurge(); surge != nil && surge.Animation == adventure.AnimationLock && name != "dismiss" {
		return "", errSurgeLocked
	}

	switch name {
	case "next":
		return fmt.Sprintf("Turn %d begins", e.AdvanceTurn()), nil

	case "rewind":
		if len(args) != 1 {
			return "", errors.New("usage: rewind N")
		}
		turn, err := strconv.Atoi(args[0])
		if err != nil {
			return "", fmt.Errorf("invalid turn %q", args[0])
		}
		if !e.RewindToTurn(turn) {
			return "", fmt.Errorf("no snapshot for turn %d", turn)
		}
		return fmt.Sprintf("Rewound to turn %d", turn), nil

	case "step":
		e.AdvanceCombatantTurn()
		return "Now acting: " + combatantName(s, e.CurrentCombatant()), nil

	case "front":
		if len(args) != 1 {
			return "", errors.New("usage: front <id>")
		}
		if !e.MoveCombatantToFront(args[0]) {
			return "", fmt.Errorf("%q is not in the queue", args[0])
		}
		return combatantName(s, args[0]) + " acts next", nil

	case "remove":
		if len(args) != 1 {
			return "", errors.New("usage: remove <id>")
		}
		if !e.RemoveCombatant(args[0]) {
			return "", fmt.Errorf("%q is not in the queue", args[0])
		}
		return args[0] + " left the fight", nil

	case "order":
		ids := splitList(strings.Join(args, " "))
		if err := e.ReorderQueueByID(ids); err != nil {
			return "", err
		}
		return "Queue reordered", nil

	case "encounter":
		adv := s.Adventure()
		if adv == nil {
			return "", errNoAdventure
		}
		if err := e.StartEncounter(adv.Combatants); err != nil {
			return "", err
		}
		return fmt.Sprintf("Encounter started with %d combatants", len(e.Queue())), nil

	case "party":
		var members []adventure.PartyMember
		for _, n := range splitList(strings.Join(args, " ")) {
			members = append(members, adventure.PartyMember{Name: n})
		}
		party := e.SetParty(members)
		return fmt.Sprintf("Party of %d mustered; start an encounter to seat them", len(party)), nil

	case "dismiss":
		if !e.DismissSurge() {
			return "", errors.New("no active surge")
		}
		return "Surge dismissed", nil

	case "drawer":
		e.SetDrawerExpanded(!e.DrawerExpanded())
		return "", nil
	}

	return changeResource(s, name, args)
}

func changeResource(s *sessions.Session, id string, args []string) (string, error) {
	adv := s.Adventure()
	if adv == nil {
		return "", errNoAdventure
	}
	res, ok := adv.Resource(id)
	if !ok {
		return "", fmt.Errorf("unknown command %q (try help)", id)
	}
	if len(args) != 1 {
		return "", fmt.Errorf("usage: %s +N | -N | =N | reset", id)
	}

	e := s.Engine
	arg := args[0]
	switch {
	case arg == "reset":
		e.ResetResource(res.ID, res.Initial)
	case strings.HasPrefix(arg, "="):
		v, err := strconv.Atoi(arg[1:])
		if err != nil {
			return "", fmt.Errorf("invalid value %q", arg)
		}
		e.SetResource(res.ID, v)
	default:
		delta, err := strconv.Atoi(arg)
		if err != nil {
			return "", fmt.Errorf("invalid delta %q", arg)
		}
		e.ModifyResource(res.ID, delta, res.Max)
	}
	return fmt.Sprintf("%s: %d/%d", res.Label, e.Resource(res.ID), res.Max), nil
}

func combatantName(s *sessions.Session, id string) string {
	for _, c := range s.Engine.Queue() {
		if c.ID == id {
			return c.Name
		}
	}
	return id
}

// splitList splits on commas, falling back to whitespace.
func splitList(raw string) []string {
	sep := ","
	if !strings.Contains(raw, sep) {
		return strings.Fields(raw)
	}
	var out []string
	for _, p := range strings.Split(raw, sep) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
