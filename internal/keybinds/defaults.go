package keybinds

// NewDefaultRegistry creates a registry with all default keybindings
func NewDefaultRegistry() *Registry {
	r := NewRegistry()

	registerGlobalBindings(r)
	registerTabBarBindings(r)
	registerListBindings(r, ContextDashboard)
	registerListBindings(r, ContextPeers)
	registerListBindings(r, ContextMethods)
	registerListBindings(r, ContextDetail)
	registerListBindings(r, ContextTransactions)
	registerListBindings(r, ContextZmq)
	registerListBindings(r, ContextModal)
	registerListBindings(r, ContextViewer)
	registerPeerBindings(r)
	registerBrowserBindings(r)
	registerTransactionBindings(r)
	registerZmqBindings(r)
	registerModalBindings(r)
	registerTextInputBindings(r)

	return r
}

func registerGlobalBindings(r *Registry) {
	r.Register(ContextGlobal, "ctrl+c", ActionQuitForce)
	r.Register(ContextGlobal, "esc", ActionBack)
}

func registerTabBarBindings(r *Registry) {
	r.Register(ContextTabBar, "q", ActionQuit)
	r.RegisterMultiple(ContextTabBar, []string{"right", "l", "tab"}, ActionNextTab)
	r.RegisterMultiple(ContextTabBar, []string{"left", "h", "shift+tab"}, ActionPrevTab)
	r.Register(ContextTabBar, "1", ActionSelectTab1)
	r.Register(ContextTabBar, "2", ActionSelectTab2)
	r.Register(ContextTabBar, "3", ActionSelectTab3)
	r.Register(ContextTabBar, "4", ActionSelectTab4)
	r.Register(ContextTabBar, "5", ActionSelectTab5)
	r.Register(ContextTabBar, "6", ActionSelectTab6)
	r.RegisterMultiple(ContextTabBar, []string{"enter", "down", "j"}, ActionEnterContent)
	r.Register(ContextTabBar, "/", ActionOpenTxSearch)
	r.Register(ContextTabBar, "r", ActionRefresh)
}

// registerListBindings sets up the vertical navigation shared by every list or viewer
func registerListBindings(r *Registry, ctx Context) {
	r.RegisterMultiple(ctx, []string{"up", "k"}, ActionNavigateUp)
	r.RegisterMultiple(ctx, []string{"down", "j"}, ActionNavigateDown)
	r.Register(ctx, "pgup", ActionPageUp)
	r.Register(ctx, "pgdown", ActionPageDown)
	r.Register(ctx, "g", ActionGoToTopPrepare)
	r.RegisterMultiple(ctx, []string{"gg", "home"}, ActionGoToTop)
	r.RegisterMultiple(ctx, []string{"G", "end"}, ActionGoToBottom)
}

func registerPeerBindings(r *Registry) {
	r.Register(ContextPeers, "enter", ActionOpenDetail)
	r.RegisterMultiple(ContextPeers, []string{"/", ":"}, ActionOpenQuery)
	r.Register(ContextPeers, "?", ActionQueryHelp)
	r.Register(ContextPeers, "x", ActionClearQuery)
}

func registerBrowserBindings(r *Registry) {
	for _, ctx := range []Context{ContextMethods, ContextDetail} {
		r.Register(ctx, "tab", ActionSwitchPane)
		r.Register(ctx, "a", ActionEditArgs)
		r.Register(ctx, "w", ActionOpenWallets)
		r.Register(ctx, "H", ActionOpenHistory)
		r.Register(ctx, "c", ActionCopy)
	}
	r.Register(ContextMethods, "enter", ActionExecute)
	r.Register(ContextMethods, "/", ActionMethodSearch)

	r.Register(ContextDetail, "enter", ActionExecute)
	r.Register(ContextDetail, "/", ActionDetailSearch)
	r.Register(ContextDetail, "n", ActionSearchNext)
	r.Register(ContextDetail, "N", ActionSearchPrev)
	r.Register(ContextDetail, "J", ActionFilterResult)
}

func registerTransactionBindings(r *Registry) {
	r.RegisterMultiple(ContextTransactions, []string{"enter", "/"}, ActionOpenTxSearch)
	r.Register(ContextTransactions, "c", ActionCopy)
}

func registerZmqBindings(r *Registry) {
	r.Register(ContextZmq, "enter", ActionOpenDetail)
	r.Register(ContextZmq, "c", ActionCopy)
}

func registerModalBindings(r *Registry) {
	r.Register(ContextModal, "enter", ActionConfirm)
	r.RegisterMultiple(ContextModal, []string{"esc", "q"}, ActionCloseModal)
	r.RegisterMultiple(ContextViewer, []string{"esc", "q", "enter"}, ActionCloseModal)
	r.Register(ContextViewer, "c", ActionCopy)
}

func registerTextInputBindings(r *Registry) {
	r.Register(ContextTextInput, "enter", ActionTextSubmit)
	r.Register(ContextTextInput, "esc", ActionTextCancel)
	r.Register(ContextTextInput, "tab", ActionTextComplete)
	r.RegisterMultiple(ContextTextInput, []string{"ctrl+v", "shift+insert"}, ActionTextPaste)
}
