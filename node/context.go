package node

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ARPA-Network/randcast-node/chain"
	"github.com/ARPA-Network/randcast-node/committer"
	"github.com/ARPA-Network/randcast-node/common/log"
	"github.com/ARPA-Network/randcast-node/core"
	"github.com/ARPA-Network/randcast-node/crypto"
	"github.com/ARPA-Network/randcast-node/crypto/bls"
	"github.com/ARPA-Network/randcast-node/dal"
	"github.com/ARPA-Network/randcast-node/dal/boltdb"
	"github.com/ARPA-Network/randcast-node/event"
	"github.com/ARPA-Network/randcast-node/listener"
	"github.com/ARPA-Network/randcast-node/management"
	"github.com/ARPA-Network/randcast-node/queue"
	"github.com/ARPA-Network/randcast-node/scheduler"
	"github.com/ARPA-Network/randcast-node/subscriber"
)

// GatewayFactory builds the chain.Gateway for one configured chain.
// Production wiring dials a real chain (chain/ethereum.Dial over a
// ContractBinding built from real contract bindings, e.g. abigen output);
// tests supply a chain/simulated.Gateway.
type GatewayFactory func(cfg ChainConfig) (chain.Gateway, error)

// Context wires every cache, queue, scheduler, listener and subscriber for
// one main chain plus N relayed chains (§4.7), grounded on the teacher's
// internal/core/drand_daemon.go wiring shape (a single struct holding every
// sub-gateway/process/handler, built then initialized in one pass).
type Context struct {
	cfg *Config
	log log.Logger
	self core.Address

	fixed   *scheduler.Fixed
	dynamic *scheduler.Dynamic
	eq      *queue.EventQueue

	blocks          *dal.BlockCache
	nodes           *dal.NodeCache
	groups          *dal.GroupCache
	dkgTasks        *dal.DKGTaskCache
	results         *dal.RandomnessResultCache
	randomnessTasks map[uint32]*dal.RandomnessTaskCache

	repo dal.Repository

	scheme crypto.Scheme

	gateways map[uint32]chain.Gateway
	board    chain.Board

	committerServer  *committer.Server
	committerClient  *committer.Client
	managementServer *management.Server
}

// NewContext builds every component but starts nothing; call Deploy to
// start the fixed tasks and HTTP servers. gateways supplies the
// chain.Gateway for each configured chain; board is the coordinator board
// the main chain's DKG driver reads/writes (e.g. chain/ethereum.NewBoard
// over the same ContractBinding the main chain's Gateway delegates to, or
// chain/simulated.NewBoard in tests).
func NewContext(cfg *Config, gateways GatewayFactory, board chain.Board, l log.Logger) (*Context, error) {
	self, err := cfg.SelfAddress()
	if err != nil {
		return nil, err
	}

	repo, err := boltdb.Open(cfg.DataDir, l)
	if err != nil {
		return nil, fmt.Errorf("opening repository: %w", err)
	}

	c := &Context{
		cfg:             cfg,
		log:             l,
		self:            self,
		fixed:           scheduler.NewFixed(l),
		dynamic:         scheduler.NewDynamic(l),
		eq:              queue.New(l),
		blocks:          dal.NewBlockCache(),
		nodes:           dal.NewNodeCache(),
		groups:          dal.NewGroupCache(),
		dkgTasks:        dal.NewDKGTaskCache(),
		results:         dal.NewRandomnessResultCache(),
		randomnessTasks: make(map[uint32]*dal.RandomnessTaskCache),
		repo:            repo,
		scheme:          bls.New(),
		gateways:        make(map[uint32]chain.Gateway),
	}

	ctx := context.Background()
	for _, chainCfg := range cfg.AllChains() {
		gw, err := gateways(chainCfg)
		if err != nil {
			return nil, fmt.Errorf("building gateway for chain %d: %w", chainCfg.ID, err)
		}
		c.gateways[chainCfg.ID] = gw
		c.randomnessTasks[chainCfg.ID] = dal.NewRandomnessTaskCache()
	}
	c.board = board

	if err := c.restoreState(ctx); err != nil {
		return nil, fmt.Errorf("restoring persisted state: %w", err)
	}

	c.committerServer = committer.NewServer(c.results, c.groups, c.scheme, c.eq, l)
	c.committerClient = committer.NewClient(nil, cfg.TimeLimits.ContractViewRetryDescriptor.Descriptor())

	nodeRegistryAddress, err := cfg.NodeRegistryAddress()
	if err != nil {
		return nil, err
	}
	c.managementServer = management.NewServer(self, nodeRegistryAddress, c.mainGateway(), c.nodes, c.groups, c.eq, l)

	return c, nil
}

// restoreState rehydrates the group cache from the repository so a
// restarted node resumes from its persisted groups (§6 "Repository exists
// so that state survives a restart") rather than re-running DKG from
// scratch. It also loads this node's row into the node cache when the
// repository has one; registration through the management server updates
// only the in-memory node cache and does not write that row. Randomness
// tasks and results are intentionally not
// rehydrated: they're re-discovered from the chain by the listeners that
// normally populate them, and a stale cached result would block a fresh
// commit round.
func (c *Context) restoreState(ctx context.Context) error {
	groups, err := c.repo.ListGroups(ctx)
	if err != nil {
		return fmt.Errorf("listing persisted groups: %w", err)
	}
	for _, g := range groups {
		c.groups.Restore(g)
	}

	if n, err := c.repo.GetNode(ctx, c.self); err == nil {
		c.nodes.Upsert(n)
	}

	return nil
}

// persistGroupOnSuccess subscribes to DKGSuccess purely to make the new
// Ready group durable; PostSuccessGroupingSubscriber (registered separately)
// still owns the in-memory Ready transition.
type persistGroupOnSuccess struct {
	repo dal.Repository
	log  log.Logger
}

func (p *persistGroupOnSuccess) Notify(ctx context.Context, e event.Event) error {
	success, ok := e.(*event.DKGSuccess)
	if !ok {
		return nil
	}
	if err := p.repo.SaveGroup(ctx, success.Group); err != nil {
		p.log.Errorw("persisting group after DKG success", "group_index", success.GroupIndex, "epoch", success.Epoch, "error", err)
		return err
	}
	return nil
}

func (c *Context) mainGateway() chain.Gateway {
	return c.gateways[c.cfg.MainChain.ID]
}

// currentGroupIndex returns the index of a Ready group this node is a
// member of — the value NewRandomnessTaskListener needs to know which
// group's pending tasks to poll (§4.3). If several groups match, which one
// is returned is not defined.
func (c *Context) currentGroupIndex() (uint32, bool) {
	for _, g := range c.groups.All() {
		if g.State == core.GroupReady && g.IsMember(c.self) {
			return g.Index, true
		}
	}
	return 0, false
}

// registerSubscribers wires every subscriber in the fixed order §4.7
// requires: BlockSubscriber must be registered before anything that reads
// the block cache, and InGroupingSubscriber before PostSuccessGrouping
// since DKGSuccess is only ever emitted from inside InGrouping's own run.
func (c *Context) registerSubscribers() {
	c.eq.Subscribe(event.ChainTopic(event.KindNewBlock, c.cfg.MainChain.ID), "block", subscriber.NewBlock(c.blocks, c.log))
	for _, rc := range c.cfg.RelayedChains {
		c.eq.Subscribe(event.ChainTopic(event.KindNewBlock, rc.ID), "block", subscriber.NewBlock(c.blocks, c.log))
	}

	c.eq.Subscribe(event.GlobalTopic(event.KindNewDKGTask), "pre_grouping", subscriber.NewPreGrouping(c.groups, c.eq, c.log))

	inGrouping := subscriber.NewInGrouping(c.self, c.board, c.mainGateway(), c.groups, c.eq, c.dynamic,
		c.cfg.dkgPhasePollInterval(), c.cfg.dynamicShutdownCheckFrequency(), c.log)
	c.eq.Subscribe(event.GlobalTopic(event.KindRunDKG), "in_grouping", inGrouping)

	c.eq.Subscribe(event.GlobalTopic(event.KindDKGSuccess), "post_success_grouping", subscriber.NewPostSuccessGrouping(c.groups, c.eq, c.log))
	c.eq.Subscribe(event.GlobalTopic(event.KindDKGSuccess), "persist_group", &persistGroupOnSuccess{repo: c.repo, log: c.log})
	c.eq.Subscribe(event.GlobalTopic(event.KindDKGPostProcess), "post_grouping",
		subscriber.NewPostGrouping(c.mainGateway(), c.cfg.TimeLimits.ContractTransactionRetryDescriptor.Descriptor(), c.log))

	// KindNewRandomnessTask has no subscriber here: the listener that
	// publishes it (listener.NewRandomnessTask) already upserts into the
	// task cache itself before publishing, so there's nothing left for a
	// subscriber to persist.
	for chainID, gw := range c.gateways {
		c.eq.Subscribe(event.ChainTopic(event.KindReadyToHandleRandomnessTask, chainID), "ready_to_handle_randomness_task",
			subscriber.NewReadyToHandleRandomnessTask(c.groups, c.results, c.scheme, c.self, c.committerServer, c.committerClient, c.log))
		c.eq.Subscribe(event.ChainTopic(event.KindReadyToFulfillRandomnessTask, chainID), "randomness_signature_aggregation",
			subscriber.NewRandomnessSignatureAggregation(c.results, c.groups, c.scheme, gw, c.cfg.TimeLimits.ContractTransactionRetryDescriptor.Descriptor(), c.log))
	}
}

// registerListeners starts one fixed task per listener, across every
// configured chain (§4.3, §4.7).
func (c *Context) registerListeners(ctx context.Context) error {
	viewRetry := c.cfg.TimeLimits.ContractViewRetryDescriptor.Descriptor()

	for _, chainCfg := range c.cfg.AllChains() {
		chainID := chainCfg.ID
		gw := c.gateways[chainID]
		tasks := c.randomnessTasks[chainID]

		if err := c.fixed.Add(ctx, core.ListenerTask(core.ListenerBlock, chainID), listener.NewBlock(gw, c.eq, viewRetry, c.log).Start); err != nil {
			return err
		}
		groupIndex := c.currentGroupIndex
		if err := c.fixed.Add(ctx, core.ListenerTask(core.ListenerNewRandomnessTask, chainID),
			listener.NewNewRandomnessTask(gw, groupIndex, tasks, c.eq, viewRetry, c.cfg.Listeners.millis(c.cfg.Listeners.NewRandomnessTaskMillis, 3*time.Second), c.log).Start); err != nil {
			return err
		}
		if err := c.fixed.Add(ctx, core.ListenerTask(core.ListenerReadyToHandleRandomnessTask, chainID),
			listener.NewReadyToHandleRandomnessTask(gw, tasks, c.eq, viewRetry, c.cfg.Listeners.millis(c.cfg.Listeners.ReadyToHandleRandomnessTaskMillis, 3*time.Second), c.log).Start); err != nil {
			return err
		}
		if err := c.fixed.Add(ctx, core.ListenerTask(core.ListenerRandomnessSignatureAggregation, chainID),
			listener.NewRandomnessSignatureAggregation(chainID, c.results, c.eq, c.cfg.Listeners.millis(c.cfg.Listeners.RandomnessSignatureAggregationMillis, 3*time.Second), c.log).Start); err != nil {
			return err
		}
	}

	mainGW := c.mainGateway()
	if err := c.fixed.Add(ctx, core.ListenerTask(core.ListenerPreGrouping, c.cfg.MainChain.ID),
		listener.NewPreGrouping(mainGW, c.self, c.dkgTasks, c.eq, viewRetry, c.cfg.Listeners.millis(c.cfg.Listeners.PreGroupingMillis, 5*time.Second), c.log).Start); err != nil {
		return err
	}
	if err := c.fixed.Add(ctx, core.ListenerTask(core.ListenerPostCommitGrouping, c.cfg.MainChain.ID),
		listener.NewPostCommitGrouping(mainGW, c.dkgTasks, c.groups, viewRetry, c.cfg.Listeners.millis(c.cfg.Listeners.PostCommitGroupingMillis, 5*time.Second), c.log).Start); err != nil {
		return err
	}
	if err := c.fixed.Add(ctx, core.ListenerTask(core.ListenerPostGrouping, c.cfg.MainChain.ID),
		listener.NewPostGrouping(c.groups, c.eq, c.cfg.Listeners.millis(c.cfg.Listeners.PostGroupingMillis, 5*time.Second), c.log).Start); err != nil {
		return err
	}
	return nil
}

// listenAndServe binds addr synchronously (so a bound-port conflict is
// reported before Deploy returns) then serves h in the background under
// the fixed scheduler.
func (c *Context) listenAndServe(ctx context.Context, tag core.TaskType, addr string, h http.Handler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding %s: %w", addr, err)
	}
	srv := &http.Server{Handler: h}
	return c.fixed.Add(ctx, tag, func(taskCtx context.Context) {
		go func() {
			<-taskCtx.Done()
			_ = srv.Close()
		}()
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			c.log.Errorw("http server exited", "addr", addr, "error", err)
		}
	})
}

// Deploy registers listeners and subscribers in the fixed order §4.7
// requires (subscribers first, so upstream state is wired before any
// listener can publish into it) and starts the committer, management and
// metrics HTTP servers. Bind failures across the three servers are
// aggregated with hashicorp/go-multierror rather than failing fast on the
// first one, so an operator sees every misconfigured port in one error.
func (c *Context) Deploy(parent context.Context) (*Handle, error) {
	ctx, cancel := context.WithCancel(parent)

	c.registerSubscribers()
	if err := c.registerListeners(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("registering listeners: %w", err)
	}

	var bindErrs *multierror.Error
	if err := c.listenAndServe(ctx, core.CommitterServerTask(), c.cfg.NodeCommitterRPCEndpoint, c.committerServer.Handler()); err != nil {
		bindErrs = multierror.Append(bindErrs, err)
	}
	if err := c.listenAndServe(ctx, core.ManagementServerTask(), c.cfg.NodeManagementRPCEndpoint, c.managementServer.Handler()); err != nil {
		bindErrs = multierror.Append(bindErrs, err)
	}
	if c.cfg.MetricsListenAddress != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
		if err := c.listenAndServe(ctx, core.MetricsServerTask(), c.cfg.MetricsListenAddress, metricsMux); err != nil {
			bindErrs = multierror.Append(bindErrs, err)
		}
	}
	if err := bindErrs.ErrorOrNil(); err != nil {
		cancel()
		return nil, fmt.Errorf("binding node HTTP servers: %w", err)
	}

	return &Handle{fixed: c.fixed, cancel: cancel, repo: c.repo}, nil
}
