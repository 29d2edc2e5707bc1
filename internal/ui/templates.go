package ui

import (
	"fmt"
	"html/template"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/me/authapp/internal/session"
	"github.com/me/authapp/pkg/model"
)

// templateFuncs provides helper functions for templates.
var templateFuncs = template.FuncMap{
	"formatTime": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Format("2006-01-02 15:04:05")
	},
	"formatStamp": func(t *model.Time) string {
		if t == nil || t.IsZero() {
			return "-"
		}
		return t.Format("2006-01-02 15:04:05")
	},
	"relTime": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return humanize.Time(t)
	},
	"roleLabel": func(r model.Role) string {
		return strings.TrimPrefix(string(r), "ROLE_")
	},
	"roleColor": func(r model.Role) string {
		if r == model.RoleAdmin {
			return "bg-purple-100 text-purple-800"
		}
		return "bg-indigo-100 text-indigo-800"
	},
	"isAdminRecord": func(u model.UserRecord) bool {
		return u.HasRole(model.RoleAdmin)
	},
	"enabledRecord": func(u model.UserRecord) bool {
		return u.IsEnabled()
	},
	"stateColor": func(s session.State) string {
		switch s {
		case session.Authenticated:
			return "bg-green-100 text-green-800"
		case session.Authenticating:
			return "bg-blue-100 text-blue-800"
		case session.Expired:
			return "bg-yellow-100 text-yellow-800"
		default:
			return "bg-gray-100 text-gray-800"
		}
	},
	"healthColor": func(label string) string {
		switch label {
		case "Healthy":
			return "text-green-600"
		case "Error":
			return "text-red-600"
		case "Checking...":
			return "text-blue-600"
		default:
			return "text-gray-500"
		}
	},
	"comma": func(n int64) string {
		return humanize.Comma(n)
	},
}

// renderTemplate renders a template with the given data.
func renderTemplate(w io.Writer, name string, data map[string]any) error {
	content, ok := templates[name]
	if !ok {
		return fmt.Errorf("template not found: %s", name)
	}

	layout, ok := templates["layout"]
	if !ok {
		return fmt.Errorf("layout template not found")
	}

	tmpl, err := template.New("layout").Funcs(templateFuncs).Parse(layout)
	if err != nil {
		return fmt.Errorf("parse layout: %w", err)
	}

	_, err = tmpl.New("content").Parse(content)
	if err != nil {
		return fmt.Errorf("parse content: %w", err)
	}

	// Add shared components.
	for compName, compContent := range templates {
		if strings.HasPrefix(compName, "components/") {
			_, err = tmpl.New(filepath.Base(compName)).Parse(compContent)
			if err != nil {
				return fmt.Errorf("parse component %s: %w", compName, err)
			}
		}
	}

	return tmpl.Execute(w, data)
}

var templates = map[string]string{
	"layout": `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <script src="https://cdn.tailwindcss.com"></script>
</head>
<body class="bg-gray-50 min-h-screen">
    <nav class="bg-white shadow-sm border-b">
        <div class="max-w-7xl mx-auto px-4 sm:px-6 lg:px-8">
            <div class="flex justify-between h-16">
                <div class="flex">
                    <a href="/" class="flex items-center px-2 py-2 text-xl font-bold text-indigo-600">
                        AuthApp
                    </a>
                    <div class="hidden sm:ml-6 sm:flex sm:space-x-8">
                        {{range .Nav}}
                        <a href="{{.Path}}" class="{{if eq .Path $.Route.Path}}border-indigo-500 text-gray-900{{else}}border-transparent text-gray-500 hover:border-gray-300 hover:text-gray-700{{end}} inline-flex items-center px-1 pt-1 border-b-2 text-sm font-medium">
                            {{.Title}}
                        </a>
                        {{end}}
                    </div>
                </div>
                <div class="flex items-center space-x-4">
                    <span id="session-state" class="px-2 py-1 text-xs font-medium rounded-full {{stateColor .Status.State}}">{{.Status.State}}</span>
                    {{if .Status.IsAuthenticated}}
                    <span class="text-sm text-gray-500">{{.Status.User.Email}}</span>
                    <form action="/logout" method="POST">
                        <input type="hidden" name="csrf_token" value="{{$.CSRF}}">
                        <button type="submit" class="text-sm text-gray-500 hover:text-gray-700">Logout</button>
                    </form>
                    {{end}}
                </div>
            </div>
        </div>
    </nav>

    <main class="max-w-7xl mx-auto py-6 sm:px-6 lg:px-8">
        {{template "messages" .}}
        {{template "content" .}}
    </main>

    <script>
        (function () {
            if (!window.EventSource) { return; }
            var badge = document.getElementById("session-state");
            var source = new EventSource("/events");
            source.addEventListener("status", function (e) {
                var st = JSON.parse(e.data);
                var previous = badge.textContent;
                badge.textContent = st.state;
                if (previous !== st.state && (st.state === "expired" || previous === "authenticated")) {
                    window.location.reload();
                }
            });
        })();
    </script>
</body>
</html>`,

	"components/messages": `{{if .Notice}}
<div class="rounded-md bg-yellow-50 p-4 mb-6">
    <div class="text-sm text-yellow-800">{{.Notice}} {{if not .Status.IsAuthenticated}}<a href="/login" class="font-medium underline">Sign in</a>{{end}}</div>
</div>
{{end}}
{{if .Error}}
<div class="rounded-md bg-red-50 p-4 mb-6">
    <div class="text-sm text-red-700">{{.Error}}</div>
</div>
{{end}}
{{if .FormError}}
<div class="rounded-md bg-red-50 p-4 mb-6">
    <div class="text-sm text-red-700">{{.FormError}}</div>
</div>
{{end}}
{{if .Success}}
<div class="rounded-md bg-green-50 p-4 mb-6">
    <div class="text-sm text-green-700">{{.Success}}</div>
</div>
{{end}}`,

	"home": `{{define "content"}}
<div class="px-4 py-6 sm:px-0">
    <div class="mb-8">
        <h1 class="text-2xl font-semibold text-gray-900">User Management</h1>
        {{if .Status.IsAuthenticated}}
        <p class="mt-1 text-sm text-gray-500">Welcome back, {{.Status.User.Email}}</p>
        {{else}}
        <p class="mt-1 text-sm text-gray-500">Sign in to manage your account.</p>
        {{end}}
    </div>

    <div class="bg-white shadow rounded-lg p-6 mb-8">
        <h2 class="text-lg font-medium text-gray-900 mb-4">Backend</h2>
        <dl class="grid grid-cols-1 gap-4 sm:grid-cols-3">
            <div>
                <dt class="text-sm text-gray-500">Status</dt>
                <dd class="mt-1 text-lg font-semibold {{healthColor .System.HealthStatus}}">{{.System.HealthStatus}}</dd>
            </div>
            <div>
                <dt class="text-sm text-gray-500">Database</dt>
                <dd class="mt-1 text-lg font-semibold text-gray-900">{{.System.DatabaseInfo}}</dd>
            </div>
            <div>
                <dt class="text-sm text-gray-500">Users</dt>
                <dd class="mt-1 text-lg font-semibold text-gray-900">{{comma .System.TotalUsers}}</dd>
            </div>
        </dl>
        {{if .System.HealthError}}
        <p class="mt-4 text-sm text-red-600">{{.System.HealthError}}</p>
        {{end}}
    </div>

    <div class="grid grid-cols-1 gap-5 sm:grid-cols-2">
        {{range .Nav}}{{if ne .Path "/"}}
        <a href="{{.Path}}" class="block bg-white shadow rounded-lg p-6 hover:bg-gray-50">
            <h3 class="text-lg font-medium text-indigo-600">{{.Title}}</h3>
        </a>
        {{end}}{{end}}
    </div>
</div>
{{end}}`,

	"login": `{{define "content"}}
<div class="flex items-center justify-center py-12 px-4 sm:px-6 lg:px-8">
    <div class="max-w-md w-full space-y-8">
        <div>
            <h2 class="mt-6 text-center text-3xl font-extrabold text-gray-900">Sign in</h2>
            {{if .Status.IsAuthenticated}}
            <p class="mt-2 text-center text-sm text-gray-600">You are signed in as {{.Status.User.Email}}.</p>
            {{else}}
            <p class="mt-2 text-center text-sm text-gray-600">
                or <a href="/register" class="font-medium text-indigo-600 hover:text-indigo-500">create an account</a>
            </p>
            {{end}}
        </div>
        <form class="mt-8 space-y-6" action="/login" method="POST">
            <input type="hidden" name="csrf_token" value="{{$.CSRF}}">
            <div class="rounded-md shadow-sm -space-y-px">
                <div>
                    <label for="email" class="sr-only">Email</label>
                    <input id="email" name="email" type="email" required value="{{.Email}}"
                           class="appearance-none rounded-none relative block w-full px-3 py-2 border border-gray-300 placeholder-gray-500 text-gray-900 rounded-t-md focus:outline-none focus:ring-indigo-500 focus:border-indigo-500 focus:z-10 sm:text-sm"
                           placeholder="Email address">
                </div>
                <div>
                    <label for="password" class="sr-only">Password</label>
                    <input id="password" name="password" type="password" required
                           class="appearance-none rounded-none relative block w-full px-3 py-2 border border-gray-300 placeholder-gray-500 text-gray-900 rounded-b-md focus:outline-none focus:ring-indigo-500 focus:border-indigo-500 focus:z-10 sm:text-sm"
                           placeholder="Password">
                </div>
            </div>
            <div>
                <button type="submit" {{if .Status.LoggingIn}}disabled{{end}}
                        class="group relative w-full flex justify-center py-2 px-4 border border-transparent text-sm font-medium rounded-md text-white bg-indigo-600 hover:bg-indigo-700 focus:outline-none focus:ring-2 focus:ring-offset-2 focus:ring-indigo-500">
                    Sign in
                </button>
            </div>
        </form>
    </div>
</div>
{{end}}`,

	"register": `{{define "content"}}
<div class="flex items-center justify-center py-12 px-4 sm:px-6 lg:px-8">
    <div class="max-w-md w-full space-y-8">
        <div>
            <h2 class="mt-6 text-center text-3xl font-extrabold text-gray-900">Create an account</h2>
            <p class="mt-2 text-center text-sm text-gray-600">
                Already registered? <a href="/login" class="font-medium text-indigo-600 hover:text-indigo-500">Sign in</a>
            </p>
        </div>
        <form class="mt-8 space-y-4" action="/register" method="POST">
            <input type="hidden" name="csrf_token" value="{{$.CSRF}}">
            <input name="email" type="email" required value="{{.Email}}" placeholder="Email address"
                   class="block w-full px-3 py-2 border border-gray-300 rounded-md sm:text-sm">
            <input name="password" type="password" required placeholder="Password"
                   class="block w-full px-3 py-2 border border-gray-300 rounded-md sm:text-sm">
            <input name="confirmPassword" type="password" required placeholder="Confirm password"
                   class="block w-full px-3 py-2 border border-gray-300 rounded-md sm:text-sm">
            <button type="submit"
                    class="w-full flex justify-center py-2 px-4 border border-transparent text-sm font-medium rounded-md text-white bg-indigo-600 hover:bg-indigo-700">
                Register
            </button>
        </form>
    </div>
</div>
{{end}}`,

	"user-dashboard": `{{define "content"}}
<div class="px-4 py-6 sm:px-0">
    <div class="mb-8">
        <h1 class="text-2xl font-semibold text-gray-900">My Account</h1>
    </div>

    {{with .Status.User}}
    <div class="bg-white shadow rounded-lg p-6 mb-8">
        <dl class="grid grid-cols-1 gap-4 sm:grid-cols-2">
            <div>
                <dt class="text-sm text-gray-500">Email</dt>
                <dd class="mt-1 text-sm text-gray-900">{{.Email}}</dd>
            </div>
            <div>
                <dt class="text-sm text-gray-500">Roles</dt>
                <dd class="mt-1 space-x-1">
                    {{range .Roles}}<span class="px-2 py-1 text-xs font-medium rounded-full {{roleColor .}}">{{roleLabel .}}</span>{{end}}
                </dd>
            </div>
            <div>
                <dt class="text-sm text-gray-500">Last login</dt>
                <dd class="mt-1 text-sm text-gray-900">{{formatStamp .LastLogin}}</dd>
            </div>
            {{with $.Status.Session}}
            <div>
                <dt class="text-sm text-gray-500">Session expires</dt>
                <dd class="mt-1 text-sm text-gray-900">{{formatTime .Expiry}} ({{relTime .Expiry}})</dd>
            </div>
            {{end}}
        </dl>
        <form action="/user-dashboard/validate" method="POST" class="mt-6">
            <input type="hidden" name="csrf_token" value="{{$.CSRF}}">
            <button type="submit" class="px-4 py-2 text-sm font-medium rounded-md border border-gray-300 text-gray-700 hover:bg-gray-50">
                Check session with server
            </button>
        </form>
        {{if $.Validation}}
        <p class="mt-3 text-sm text-gray-600">{{$.Validation}}</p>
        {{end}}
    </div>

    <div class="bg-white shadow rounded-lg p-6">
        <h2 class="text-lg font-medium text-gray-900 mb-4">Change password</h2>
        <form action="/user-dashboard/password" method="POST" class="space-y-4 max-w-md">
            <input type="hidden" name="csrf_token" value="{{$.CSRF}}">
            <input name="currentPassword" type="password" required placeholder="Current password"
                   class="block w-full px-3 py-2 border border-gray-300 rounded-md sm:text-sm">
            <input name="newPassword" type="password" required placeholder="New password"
                   class="block w-full px-3 py-2 border border-gray-300 rounded-md sm:text-sm">
            <input name="confirmPassword" type="password" required placeholder="Confirm new password"
                   class="block w-full px-3 py-2 border border-gray-300 rounded-md sm:text-sm">
            <button type="submit" {{if $.Status.ChangingPassword}}disabled{{end}}
                    class="px-4 py-2 text-sm font-medium rounded-md text-white bg-indigo-600 hover:bg-indigo-700">
                Change password
            </button>
        </form>
    </div>
    {{end}}
</div>
{{end}}`,

	"admin-dashboard": `{{define "content"}}
<div class="px-4 py-6 sm:px-0">
    <div class="mb-8 flex justify-between items-center">
        <h1 class="text-2xl font-semibold text-gray-900">Administration</h1>
        <form action="/admin-dashboard/seed" method="POST">
            <input type="hidden" name="csrf_token" value="{{$.CSRF}}">
            <button type="submit" class="px-4 py-2 text-sm font-medium rounded-md border border-gray-300 text-gray-700 hover:bg-gray-50">
                Initialize sample data
            </button>
        </form>
    </div>

    <div class="grid grid-cols-1 gap-5 sm:grid-cols-2 lg:grid-cols-4 mb-8">
        <div class="bg-white overflow-hidden shadow rounded-lg p-5">
            <dt class="text-sm text-gray-500">Backend</dt>
            <dd class="mt-1 text-2xl font-semibold {{healthColor .System.HealthStatus}}">{{.System.HealthStatus}}</dd>
        </div>
        <div class="bg-white overflow-hidden shadow rounded-lg p-5">
            <dt class="text-sm text-gray-500">Total users</dt>
            <dd class="mt-1 text-2xl font-semibold text-gray-900">{{comma .System.TotalUsers}}</dd>
        </div>
        {{with .System.Stats}}
        <div class="bg-white overflow-hidden shadow rounded-lg p-5">
            <dt class="text-sm text-gray-500">Administrators</dt>
            <dd class="mt-1 text-2xl font-semibold text-gray-900">{{comma .AdminUsers}}</dd>
        </div>
        <div class="bg-white overflow-hidden shadow rounded-lg p-5">
            <dt class="text-sm text-gray-500">Regular users</dt>
            <dd class="mt-1 text-2xl font-semibold text-gray-900">{{comma .RegularUsers}}</dd>
        </div>
        {{end}}
    </div>
    {{if .System.StatsError}}
    <p class="mb-6 text-sm text-red-600">{{.System.StatsError}}</p>
    {{end}}

    <div class="bg-white shadow rounded-lg mb-8">
        <div class="px-6 py-4 border-b">
            <h2 class="text-lg font-medium text-gray-900">Users ({{.Users.Count}})</h2>
            {{if .Users.UsersError}}<p class="mt-1 text-sm text-red-600">{{.Users.UsersError}}</p>{{end}}
        </div>
        <table class="min-w-full divide-y divide-gray-200">
            <thead class="bg-gray-50">
                <tr>
                    <th class="px-6 py-3 text-left text-xs font-medium text-gray-500 uppercase">ID</th>
                    <th class="px-6 py-3 text-left text-xs font-medium text-gray-500 uppercase">Email</th>
                    <th class="px-6 py-3 text-left text-xs font-medium text-gray-500 uppercase">Roles</th>
                    <th class="px-6 py-3 text-left text-xs font-medium text-gray-500 uppercase">Created</th>
                    <th class="px-6 py-3 text-left text-xs font-medium text-gray-500 uppercase">Actions</th>
                </tr>
            </thead>
            <tbody class="divide-y divide-gray-200">
                {{range .Users.Users}}
                <tr>
                    <td class="px-6 py-4 text-sm text-gray-500">{{.ID}}</td>
                    <td class="px-6 py-4 text-sm text-gray-900">{{.Email}}{{if not (enabledRecord .)}} <span class="text-xs text-red-600">(disabled)</span>{{end}}</td>
                    <td class="px-6 py-4 space-x-1">
                        {{range .Roles}}<span class="px-2 py-1 text-xs font-medium rounded-full {{roleColor .}}">{{roleLabel .}}</span>{{end}}
                    </td>
                    <td class="px-6 py-4 text-sm text-gray-500">{{formatStamp .CreatedAt}}</td>
                    <td class="px-6 py-4 text-sm">
                        <form action="/admin-dashboard/users/{{.ID}}/update" method="POST" class="inline-flex space-x-2">
                            <input type="hidden" name="csrf_token" value="{{$.CSRF}}">
                            <select name="role" class="border border-gray-300 rounded-md text-sm">
                                <option value="user" {{if not (isAdminRecord .)}}selected{{end}}>User</option>
                                <option value="admin" {{if isAdminRecord .}}selected{{end}}>Admin</option>
                            </select>
                            <select name="enabled" class="border border-gray-300 rounded-md text-sm">
                                <option value="true" {{if enabledRecord .}}selected{{end}}>Enabled</option>
                                <option value="false" {{if not (enabledRecord .)}}selected{{end}}>Disabled</option>
                            </select>
                            <button type="submit" class="text-indigo-600 hover:text-indigo-900">Save</button>
                        </form>
                        <form action="/admin-dashboard/users/{{.ID}}/delete" method="POST" class="inline">
                            <input type="hidden" name="csrf_token" value="{{$.CSRF}}">
                            <button type="submit" class="ml-2 text-red-600 hover:text-red-900">Delete</button>
                        </form>
                    </td>
                </tr>
                {{else}}
                <tr><td colspan="5" class="px-6 py-4 text-sm text-gray-500">No users found.</td></tr>
                {{end}}
            </tbody>
        </table>
    </div>

    <div class="bg-white shadow rounded-lg p-6">
        <h2 class="text-lg font-medium text-gray-900 mb-4">Create user</h2>
        <form action="/admin-dashboard/users" method="POST" class="grid grid-cols-1 gap-4 sm:grid-cols-4">
            <input type="hidden" name="csrf_token" value="{{$.CSRF}}">
            <input name="email" type="email" required placeholder="Email address"
                   class="px-3 py-2 border border-gray-300 rounded-md sm:text-sm">
            <input name="password" type="password" required placeholder="Password"
                   class="px-3 py-2 border border-gray-300 rounded-md sm:text-sm">
            <select name="role" class="px-3 py-2 border border-gray-300 rounded-md sm:text-sm">
                <option value="user">User</option>
                <option value="admin">Admin</option>
            </select>
            <button type="submit" {{if .Users.OperationLoading}}disabled{{end}}
                    class="px-4 py-2 text-sm font-medium rounded-md text-white bg-indigo-600 hover:bg-indigo-700">
                Create
            </button>
        </form>
    </div>
</div>
{{end}}`,

	"error": `{{define "content"}}
<div class="text-center py-12">
    <h1 class="text-2xl font-bold text-gray-900">{{.Title}}</h1>
    <p class="mt-2 text-gray-600">{{.Message}}</p>
    <a href="/" class="mt-4 inline-block text-indigo-600 hover:text-indigo-500">Back to home</a>
</div>
{{end}}`,
}
