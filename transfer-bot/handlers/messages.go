package handlers

const (
	welcomeMessage = "Welcome to the member transfer bot.\n\n" +
		"Contribute an account to the shared pool, then request a transfer of members " +
		"from a source group into your own group."
	apiGuideMessage = "How to get your API ID and API hash:\n\n" +
		"1. Open my.telegram.org and log in with the phone number of the account.\n" +
		"2. Choose \"API development tools\".\n" +
		"3. Create an application (any name and short name).\n" +
		"4. Copy the api_id and api_hash shown on the page.\n\n" +
		"Then press the button below to add the account."
	addAccountIntro       = "Adding an account.\n\n"
	noAccountsMessage     = "You have not added any accounts yet."
	checkingAccounts      = "Checking your accounts, this can take a moment..."
	maintenanceMessage    = "The bot is under maintenance, please try again later."
	forceSubscribeMessage = "Please join %s first, then try again."
	requireAccountMessage = "Only contributors can request transfers. Add at least one account first."
	askSourceMessage      = "Great, you are a contributor.\n\nStep 1: send the username of the source group."
	askTargetMessage      = "Step 2: send the username of your target group."
	notAdminMessage       = "Error: I am not an administrator of the target group. Promote me and try again."
	noAccessMessage       = "Error: I cannot access the target group."
	queueFailedMessage    = "Could not queue your request, please try again later."
	jobQueuedMessage      = "Request received! You are number %d in the queue. You will be notified when it starts and finishes."
	jobWaitingMessage     = "Another transfer is running right now; yours starts after it."
	useMenuMessage        = "Use /start to open the menu."
	cancelledMessage      = "Cancelled."
	botOnMessage          = "The bot is now ON."
	botOffMessage         = "The bot is now OFF."
	storageErrorMessage   = "Something went wrong, please try again later."

	transferStartedMessage  = "Transfer from %s to %s started..."
	transferProgressMessage = "Transfer from %s to %s in progress: %d/%d members added."
	transferFinishedMessage = "Transfer from %s to %s finished. %d members added."
	noPoolAccountsMessage   = "No accounts are available in the pool right now."
	transferFailedMessage   = "Transfer from %s to %s failed: %s"
	invalidAccountNotice    = "One of your accounts (API ID %d) is no longer logged in and was removed from the pool. Add it again to keep contributing."
)

const (
	cbGuide       = "guide"
	cbAddAccount  = "add_account"
	cbMyAccounts  = "my_accounts"
	cbNewTransfer = "new_transfer"
	cbMenu        = "menu"
)
