package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/playperu/coopquest/internal/session"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse maps each dependency to its check result.
type HealthResponse map[string]struct {
	Status string `json:"status" enum:"ok,error"`
}

// roomErrors documents the error statuses every room operation can return.
func roomErrors(op openapi.OperationContext, statuses ...int) {
	for _, st := range append([]int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound}, statuses...) {
		op.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(st))
	}
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "CoopQuest API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Cooperative quest sessions: lobby, group votes, encounters and expeditions.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// POST /api/rooms
	createRoom, _ := r.NewOperationContext(http.MethodPost, "/api/rooms")
	createRoom.SetSummary("Create room")
	createRoom.SetDescription("Opens a waiting room hosted and seated by the caller. Returns the invite code in the room state.")
	createRoom.AddReqStructure(CreateRoomRequest{})
	createRoom.AddRespStructure(session.RoomState{}, openapi.WithHTTPStatus(http.StatusCreated))
	createRoom.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	createRoom.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnprocessableEntity))
	_ = r.AddOperation(createRoom)

	// GET /api/rooms/{code}
	getRoom, _ := r.NewOperationContext(http.MethodGet, "/api/rooms/{code}")
	getRoom.SetSummary("Get room state")
	getRoom.SetDescription("Returns the room snapshot: participants, scene, tally, camp and expedition.")
	getRoom.AddReqStructure(struct {
		Code string `path:"code"`
	}{})
	getRoom.AddRespStructure(session.RoomState{}, openapi.WithHTTPStatus(http.StatusOK))
	getRoom.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getRoom)

	// POST /api/rooms/{code}/join
	join, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{code}/join")
	join.SetSummary("Join room")
	join.SetDescription("Seats the caller with the requested or first free role. Rejoining is idempotent.")
	join.AddReqStructure(JoinRequest{})
	join.AddRespStructure(session.RoomState{}, openapi.WithHTTPStatus(http.StatusOK))
	roomErrors(join, http.StatusConflict, http.StatusUnprocessableEntity)
	_ = r.AddOperation(join)

	// POST /api/rooms/{code}/leave
	leave, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{code}/leave")
	leave.SetSummary("Leave room")
	leave.SetDescription("Removes the caller and their votes. The last player leaving deletes the room.")
	leave.AddReqStructure(RoomParams{})
	leave.AddRespStructure(LeaveResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	roomErrors(leave, http.StatusForbidden)
	_ = r.AddOperation(leave)

	// POST /api/rooms/{code}/ready
	ready, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{code}/ready")
	ready.SetSummary("Set ready")
	ready.AddReqStructure(ReadyRequest{})
	ready.AddRespStructure(session.RoomState{}, openapi.WithHTTPStatus(http.StatusOK))
	roomErrors(ready, http.StatusForbidden, http.StatusConflict)
	_ = r.AddOperation(ready)

	// POST /api/rooms/{code}/start
	start, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{code}/start")
	start.SetSummary("Start session")
	start.SetDescription("Host only. Requires enough ready players, each holding a role.")
	start.AddReqStructure(RoomParams{})
	start.AddRespStructure(session.RoomState{}, openapi.WithHTTPStatus(http.StatusOK))
	roomErrors(start, http.StatusForbidden, http.StatusConflict, http.StatusUnprocessableEntity)
	_ = r.AddOperation(start)

	// POST /api/rooms/{code}/vote
	vote, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{code}/vote")
	vote.SetSummary("Cast vote")
	vote.SetDescription("Records a choice for the current scene and resolves it once the scene's vote rule is met. " +
		"The host may vote for a bot with asPlayerId.")
	vote.AddReqStructure(VoteRequest{})
	vote.AddRespStructure(session.VoteResult{}, openapi.WithHTTPStatus(http.StatusOK))
	roomErrors(vote, http.StatusForbidden, http.StatusConflict, http.StatusUnprocessableEntity)
	_ = r.AddOperation(vote)

	// POST /api/rooms/{code}/encounter/resolve
	resolve, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{code}/encounter/resolve")
	resolve.SetSummary("Resolve encounter")
	resolve.SetDescription("Host only. Writes back battle vitals, pays the reward on victory and leaves the battle scene.")
	resolve.AddReqStructure(ResolveEncounterRequest{})
	resolve.AddRespStructure(session.RoomState{}, openapi.WithHTTPStatus(http.StatusOK))
	roomErrors(resolve, http.StatusForbidden, http.StatusConflict, http.StatusUnprocessableEntity)
	_ = r.AddOperation(resolve)

	// POST /api/rooms/{code}/checkpoint
	checkpoint, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{code}/checkpoint")
	checkpoint.SetSummary("Reach checkpoint")
	checkpoint.SetDescription("Moves the caller's cursor in an individual scene; the group follows once everyone arrives.")
	checkpoint.AddReqStructure(CheckpointRequest{})
	checkpoint.AddRespStructure(session.RoomState{}, openapi.WithHTTPStatus(http.StatusOK))
	roomErrors(checkpoint, http.StatusForbidden, http.StatusConflict)
	_ = r.AddOperation(checkpoint)

	// POST /api/rooms/{code}/broadcast/advance
	advance, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{code}/broadcast/advance")
	advance.SetSummary("Advance broadcast")
	advance.SetDescription("Passes the turn in a sequential broadcast scene.")
	advance.AddReqStructure(RoomParams{})
	advance.AddRespStructure(session.RoomState{}, openapi.WithHTTPStatus(http.StatusOK))
	roomErrors(advance, http.StatusForbidden, http.StatusConflict)
	_ = r.AddOperation(advance)

	// POST /api/rooms/{code}/camp/upgrades/{upgradeID}
	upgrade, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{code}/camp/upgrades/{upgradeID}")
	upgrade.SetSummary("Purchase camp upgrade")
	upgrade.SetDescription("Spends camp credits on the next level of an upgrade.")
	upgrade.AddReqStructure(struct {
		RoomParams
		UpgradeID string `path:"upgradeID"`
	}{})
	upgrade.AddRespStructure(session.RoomState{}, openapi.WithHTTPStatus(http.StatusOK))
	roomErrors(upgrade, http.StatusForbidden, http.StatusUnprocessableEntity)
	_ = r.AddOperation(upgrade)

	// POST /api/rooms/{code}/debug/scene
	forceScene, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{code}/debug/scene")
	forceScene.SetSummary("Force scene")
	forceScene.SetDescription("Debug only. Jumps the room to a node, discarding pending votes.")
	forceScene.AddReqStructure(ForceSceneRequest{})
	forceScene.AddRespStructure(session.RoomState{}, openapi.WithHTTPStatus(http.StatusOK))
	roomErrors(forceScene)
	_ = r.AddOperation(forceScene)

	// POST /api/rooms/{code}/debug/bots
	addBot, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{code}/debug/bots")
	addBot.SetSummary("Add bot")
	addBot.SetDescription("Debug only. Host seats a ready bot it can vote for.")
	addBot.AddReqStructure(AddBotRequest{})
	addBot.AddRespStructure(session.RoomState{}, openapi.WithHTTPStatus(http.StatusOK))
	roomErrors(addBot, http.StatusForbidden, http.StatusUnprocessableEntity)
	_ = r.AddOperation(addBot)

	// GET /api/rooms/{code}/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/rooms/{code}/events")
	getEvents.SetSummary("SSE event stream")
	getEvents.SetDescription("Server-Sent Events stream of room snapshots. The first event is the current state.")
	getEvents.AddReqStructure(struct {
		Code string `path:"code"`
	}{})
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	// GET /api/rooms/{code}/ws
	getWS, _ := r.NewOperationContext(http.MethodGet, "/api/rooms/{code}/ws")
	getWS.SetSummary("WebSocket room feed")
	getWS.SetDescription("Upgrades to a WebSocket that pushes a room snapshot after every change.")
	getWS.AddReqStructure(struct {
		Code string `path:"code"`
	}{})
	getWS.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("application/json"))
	_ = r.AddOperation(getWS)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
