package server

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"slices"
	"sort"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/Fekinox/xo-grid/pkg/game"
	"github.com/Fekinox/xo-grid/pkg/grid"
	"github.com/Fekinox/xo-grid/pkg/message"
)

const (
	LOBBY_GEN_MAX_ATTEMPTS = 10
	LOBBY_MAX_USERS        = 2
	LOBBY_NAME_LEN         = 4
)

// Broadcaster delivers messages to connected users by name.
type Broadcaster interface {
	BroadcastText(text string, users ...string)
	BroadcastJSON(v any, users ...string)
}

type Lobby struct {
	Name  string
	Host  string
	Users []string

	Mode      game.Mode
	WinLength int

	// Session is nil until the host starts a game.
	Session *game.Session
	Players map[game.Token]string

	passcodeHash []byte
}

func (lb *Lobby) tokenOf(user string) game.Token {
	for tok, u := range lb.Players {
		if u == user {
			return tok
		}
	}
	return game.NoToken
}

// midGame reports whether a round has moves on the board. A round that was
// just (re)started may still be replaced.
func (lb *Lobby) midGame() bool {
	return lb.Session != nil && !lb.Session.Status().Finished() && len(lb.Session.Turns()) > 0
}

// GameManager owns every lobby and the game session running in it.
type GameManager struct {
	mu sync.Mutex

	out              Broadcaster
	rng              *rand.Rand
	defaultMode      game.Mode
	defaultWinLength int
	passcodeCost     int

	Lobbies     map[string]*Lobby
	UserLobbies map[string]string
}

func NewGameManager(out Broadcaster, mode game.Mode, winLength int, rng *rand.Rand) *GameManager {
	return &GameManager{
		out:              out,
		rng:              rng,
		defaultMode:      mode,
		defaultWinLength: winLength,
		passcodeCost:     bcrypt.DefaultCost,

		Lobbies:     make(map[string]*Lobby),
		UserLobbies: make(map[string]string),
	}
}

func (g *GameManager) newLobbyName() string {
	var sb strings.Builder

	for i := 0; i < LOBBY_NAME_LEN; i++ {
		sb.WriteByte(byte(g.rng.Intn(26)) + 'A')
	}

	return sb.String()
}

func (g *GameManager) lobbyOf(user string) (*Lobby, bool) {
	lbName, ok := g.UserLobbies[user]
	if !ok {
		g.out.BroadcastText("You are not in a lobby", user)
		return nil, false
	}

	lb, ok := g.Lobbies[lbName]
	if !ok {
		delete(g.UserLobbies, user)
		g.out.BroadcastText("You are not in a lobby", user)
		return nil, false
	}

	return lb, true
}

// NewLobby creates a lobby hosted by host. A non-empty passcode is required
// from everyone who joins afterwards.
func (g *GameManager) NewLobby(host, passcode string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var name string
	var attempts int
	for {
		if attempts >= LOBBY_GEN_MAX_ATTEMPTS {
			g.out.BroadcastText("Cannot generate lobby at this time", host)
			return
		}
		name = g.newLobbyName()
		if _, ok := g.Lobbies[name]; !ok {
			break
		}
		attempts++
	}

	lobby := &Lobby{
		Name:      name,
		Host:      host,
		Users:     []string{host},
		Mode:      g.defaultMode,
		WinLength: g.defaultWinLength,
	}

	if passcode != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(passcode), g.passcodeCost)
		if err != nil {
			log.Println("hash passcode:", err)
			g.out.BroadcastText("Cannot set that passcode", host)
			return
		}
		lobby.passcodeHash = hash
	}

	if _, ok := g.UserLobbies[host]; ok {
		g.removeFromLobby(host)
	}

	g.Lobbies[name] = lobby
	g.UserLobbies[host] = name

	g.out.BroadcastText(fmt.Sprintf("You have created a lobby named %s", name), host)
}

func (g *GameManager) removeFromLobby(user string) {
	lb, ok := g.lobbyOf(user)
	if !ok {
		return
	}

	lb.Users = slices.DeleteFunc(lb.Users, func(u string) bool {
		return u == user
	})
	delete(g.UserLobbies, user)

	g.out.BroadcastText(fmt.Sprintf("%s has left the lobby", user), lb.Users...)

	if lb.Session != nil && lb.tokenOf(user) != game.NoToken {
		lb.Session = nil
		lb.Players = nil
		g.out.BroadcastText("The game was abandoned", lb.Users...)
	}

	if lb.Host == user && len(lb.Users) > 0 {
		lb.Host = lb.Users[0]

		g.out.BroadcastText("You are now the host", lb.Host)
	}

	if len(lb.Users) == 0 {
		delete(g.Lobbies, lb.Name)
	}

	g.out.BroadcastText("You have left the lobby", user)
}

func (g *GameManager) RemoveFromLobby(user string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.removeFromLobby(user)
}

// DropUser is the disconnect hook: it leaves the lobby without complaining
// when the user was not in one.
func (g *GameManager) DropUser(user string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.UserLobbies[user]; ok {
		g.removeFromLobby(user)
	}
}

func (g *GameManager) JoinLobby(user, lobby, passcode string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	lobby = strings.ToUpper(lobby)

	lb, ok := g.Lobbies[lobby]
	if !ok {
		g.out.BroadcastText(fmt.Sprintf("Lobby %s does not exist", lobby), user)
		return
	}

	if slices.Contains(lb.Users, user) {
		g.out.BroadcastText(fmt.Sprintf("Already in lobby %s", lobby), user)
		return
	}

	if len(lb.Users) >= LOBBY_MAX_USERS {
		g.out.BroadcastText(fmt.Sprintf("Lobby %s is full", lobby), user)
		return
	}

	if lb.passcodeHash != nil {
		if err := bcrypt.CompareHashAndPassword(lb.passcodeHash, []byte(passcode)); err != nil {
			if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
				log.Println("compare passcode:", err)
			}
			g.out.BroadcastText(fmt.Sprintf("Wrong passcode for lobby %s", lobby), user)
			return
		}
	}

	if _, ok := g.UserLobbies[user]; ok {
		g.removeFromLobby(user)
	}

	g.out.BroadcastText(fmt.Sprintf("%s is joining the lobby", user), lb.Users...)

	lb.Users = append(lb.Users, user)
	g.UserLobbies[user] = lobby

	g.out.BroadcastText(fmt.Sprintf("You have joined lobby %s", lobby), user)
	g.lobbyInfo(user)
}

func (g *GameManager) SayInLobby(user, text string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	lb, ok := g.lobbyOf(user)
	if !ok {
		return
	}

	g.out.BroadcastText(fmt.Sprintf("%s: %s", user, text), lb.Users...)
}

func (g *GameManager) lobbyInfo(user string) {
	lb, ok := g.lobbyOf(user)
	if !ok {
		return
	}

	g.out.BroadcastText(fmt.Sprintf("Lobby: %s", lb.Name), user)
	g.out.BroadcastText(fmt.Sprintf("Mode: %s, %d in a row", lb.Mode.Name, lb.WinLength), user)
	g.out.BroadcastText("Users:", user)
	for _, u := range lb.Users {
		if u == lb.Host {
			g.out.BroadcastText(fmt.Sprintf("%s (host)", u), user)
		} else {
			g.out.BroadcastText(u, user)
		}
	}
}

func (g *GameManager) LobbyInfo(user string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.lobbyInfo(user)
}

// ListLobbies sends user every open lobby, alphabetically.
func (g *GameManager) ListLobbies(user string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.Lobbies) == 0 {
		g.out.BroadcastText("No lobbies", user)
		return
	}

	names := make([]string, 0, len(g.Lobbies))
	for name := range g.Lobbies {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		lb := g.Lobbies[name]
		var locked string
		if lb.passcodeHash != nil {
			locked = ", locked"
		}
		g.out.BroadcastText(fmt.Sprintf("%s (%d/%d, %s%s)",
			name, len(lb.Users), LOBBY_MAX_USERS, lb.Mode.Name, locked), user)
	}
}

// SetMode changes the board for the next game. Only the host may change it,
// and not once the current round has moves. A winLength of 0 picks the mode's
// shortest.
func (g *GameManager) SetMode(user string, mode game.Mode, winLength int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	lb, ok := g.lobbyOf(user)
	if !ok {
		return
	}
	if lb.Host != user {
		g.out.BroadcastText("Only the host can change the mode", user)
		return
	}
	if lb.midGame() {
		g.out.BroadcastText("Cannot change the mode during a game", user)
		return
	}
	if winLength == 0 {
		winLength = mode.WinLengths[0]
	}
	if !mode.AllowsWinLength(winLength) {
		g.out.BroadcastText(fmt.Sprintf("%s allows %s in a row",
			mode.Name, joinInts(mode.WinLengths)), user)
		return
	}

	lb.Mode = mode
	lb.WinLength = winLength
	lb.Session = nil
	lb.Players = nil

	g.out.BroadcastText(fmt.Sprintf("Mode set to %s, %d in a row", mode.Name, winLength), lb.Users...)
}

// StartGame begins a game between the lobby's two users. The host plays X.
func (g *GameManager) StartGame(user string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	lb, ok := g.lobbyOf(user)
	if !ok {
		return
	}
	if lb.Host != user {
		g.out.BroadcastText("Only the host can start the game", user)
		return
	}
	if len(lb.Users) < LOBBY_MAX_USERS {
		g.out.BroadcastText("Waiting for an opponent", user)
		return
	}
	if lb.midGame() {
		g.out.BroadcastText("A game is already running", user)
		return
	}

	sess, err := game.NewSession(lb.Mode, lb.WinLength, g.rng)
	if err != nil {
		log.Println("start game:", err)
		g.out.BroadcastText(fmt.Sprintf("Cannot start game: %v", err), user)
		return
	}

	guest := lb.Users[0]
	if guest == lb.Host {
		guest = lb.Users[1]
	}
	lb.Session = sess
	lb.Players = map[game.Token]string{
		game.X: lb.Host,
		game.O: guest,
	}

	g.out.BroadcastText(fmt.Sprintf("Game started on %s, %d in a row. %s plays X, %s plays O",
		lb.Mode.Name, lb.WinLength, lb.Host, guest), lb.Users...)
	g.announceTurn(lb)
	g.sendState(lb, lb.Users...)
}

// Move plays pos for user. A finished game is reported and the board is
// cleared for the next round straight away.
func (g *GameManager) Move(user string, pos grid.Pos) {
	g.mu.Lock()
	defer g.mu.Unlock()

	lb, ok := g.lobbyOf(user)
	if !ok {
		return
	}
	if lb.Session == nil {
		g.out.BroadcastText("No game is running", user)
		return
	}

	tok := lb.tokenOf(user)
	if tok == game.NoToken {
		g.out.BroadcastText("You are not playing", user)
		return
	}
	if tok != lb.Session.CurrentToken() {
		g.out.BroadcastText("It is not your turn", user)
		return
	}

	turn, err := lb.Session.Play(pos)
	if err != nil {
		g.out.BroadcastText(fmt.Sprintf("Cannot play there: %v", err), user)
		return
	}

	g.out.BroadcastText(fmt.Sprintf("%s (%s) played %d %d", user, turn.Token, pos.X, pos.Y), lb.Users...)
	g.sendState(lb, lb.Users...)

	switch status := lb.Session.Status(); status {
	case game.XWin, game.OWin:
		winner := lb.Players[lb.Session.Winner()]
		g.out.BroadcastText(fmt.Sprintf("%s wins! Starting a new round", winner), lb.Users...)
	case game.Draw:
		g.out.BroadcastText("Draw! Starting a new round", lb.Users...)
	default:
		g.announceTurn(lb)
		return
	}

	lb.Session.Restart()
	g.announceTurn(lb)
	g.sendState(lb, lb.Users...)
}

// RestartGame clears the board mid-game. Host only.
func (g *GameManager) RestartGame(user string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	lb, ok := g.lobbyOf(user)
	if !ok {
		return
	}
	if lb.Host != user {
		g.out.BroadcastText("Only the host can restart the game", user)
		return
	}
	if lb.Session == nil {
		g.out.BroadcastText("No game is running", user)
		return
	}

	lb.Session.Restart()
	g.out.BroadcastText("The game was restarted", lb.Users...)
	g.announceTurn(lb)
	g.sendState(lb, lb.Users...)
}

func (g *GameManager) GetCurrentGameState(user string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	lb, ok := g.lobbyOf(user)
	if !ok {
		return
	}
	if lb.Session == nil {
		g.out.BroadcastText("No game is running", user)
		return
	}

	for _, row := range lb.Session.Rows() {
		g.out.BroadcastText(row, user)
	}
	g.sendState(lb, user)
}

func (g *GameManager) announceTurn(lb *Lobby) {
	tok := lb.Session.CurrentToken()
	g.out.BroadcastText(fmt.Sprintf("%s to move (%s)", lb.Players[tok], tok), lb.Users...)
}

func (g *GameManager) sendState(lb *Lobby, users ...string) {
	g.out.BroadcastJSON(message.NewBoardState(lb.Name, lb.Session, lb.Players), users...)
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ", ")
}
