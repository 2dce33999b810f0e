package keybinds

// Action represents a user action that can be triggered by a keybinding
type Action string

// Context represents the context in which keybindings are active
type Context string

const (
	// Contexts define where keybindings are active
	ContextGlobal       Context = "global"       // Available everywhere
	ContextTabBar       Context = "tabbar"       // Tab bar focus
	ContextDashboard    Context = "dashboard"    // Dashboard content
	ContextPeers        Context = "peers"        // Peer table content
	ContextMethods      Context = "methods"      // Method list pane (RPC and Wallet tabs)
	ContextDetail       Context = "detail"       // Method detail pane (RPC and Wallet tabs)
	ContextTransactions Context = "transactions" // Transaction search content
	ContextZmq          Context = "zmq"          // ZMQ event list content
	ContextModal        Context = "modal"        // Selectable popups (wallet picker, history)
	ContextViewer       Context = "viewer"       // Scrollable popups (peer detail, help, block)
	ContextTextInput    Context = "text_input"   // Any focused text input
)

// Contexts lists every context in display order.
var Contexts = []Context{
	ContextGlobal, ContextTabBar, ContextDashboard, ContextPeers, ContextMethods, ContextDetail,
	ContextTransactions, ContextZmq, ContextModal, ContextViewer, ContextTextInput,
}

// ParseContext returns the context named s.
func ParseContext(s string) (Context, bool) {
	for _, c := range Contexts {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

const (
	// Global actions
	ActionQuit      Action = "quit"       // Quit application
	ActionQuitForce Action = "quit_force" // Force quit (ctrl+c)
	ActionBack      Action = "back"       // Return to the tab bar

	// Tab bar
	ActionNextTab      Action = "next_tab"
	ActionPrevTab      Action = "prev_tab"
	ActionSelectTab1   Action = "select_tab_1"
	ActionSelectTab2   Action = "select_tab_2"
	ActionSelectTab3   Action = "select_tab_3"
	ActionSelectTab4   Action = "select_tab_4"
	ActionSelectTab5   Action = "select_tab_5"
	ActionSelectTab6   Action = "select_tab_6"
	ActionEnterContent Action = "enter_content"
	ActionOpenTxSearch Action = "open_tx_search"
	ActionRefresh      Action = "refresh"

	// Navigation actions
	ActionNavigateUp     Action = "navigate_up"
	ActionNavigateDown   Action = "navigate_down"
	ActionPageUp         Action = "page_up"
	ActionPageDown       Action = "page_down"
	ActionGoToTop        Action = "go_to_top"
	ActionGoToTopPrepare Action = "go_to_top_prepare" // First 'g' in 'gg' sequence
	ActionGoToBottom     Action = "go_to_bottom"

	// Method browser
	ActionSwitchPane   Action = "switch_pane"
	ActionExecute      Action = "execute"
	ActionEditArgs     Action = "edit_args"
	ActionMethodSearch Action = "method_search"
	ActionDetailSearch Action = "detail_search"
	ActionSearchNext   Action = "search_next"
	ActionSearchPrev   Action = "search_prev"
	ActionFilterResult Action = "filter_result"
	ActionCopy         Action = "copy_to_clipboard"
	ActionOpenWallets  Action = "open_wallets"
	ActionOpenHistory  Action = "open_history"

	// Peers
	ActionOpenQuery  Action = "open_query"
	ActionQueryHelp  Action = "query_help"
	ActionOpenDetail Action = "open_detail"
	ActionClearQuery Action = "clear_query"

	// Text input actions
	ActionTextSubmit   Action = "text_submit"
	ActionTextCancel   Action = "text_cancel"
	ActionTextComplete Action = "text_complete"
	ActionTextPaste    Action = "text_paste"

	// Modal actions
	ActionCloseModal Action = "close_modal"
	ActionConfirm    Action = "confirm"
)
