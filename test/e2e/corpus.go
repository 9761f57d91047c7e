// Package e2e runs the ingest, rebuild, retrieve and ask flow against a generated course corpus.
package e2e

import (
	"fmt"
	"strings"
)

// Lecture is one corpus document: its file base name (without extension), title and body.
type Lecture struct {
	Name    string
	Title   string
	Content string
}

// QueryCase is a query and the lecture whose chunks must appear among the results.
type QueryCase struct {
	Query    string
	Expected string
}

// Corpus holds lectures and the queries that target them.
type Corpus struct {
	Lectures []Lecture
	Cases    []QueryCase
}

type topic struct {
	title, phrase, content string
}

var topics = []topic{
	{"Processes", "process control block", "A process is a program in execution. The process control block stores registers, state and open files for each process."},
	{"Threads", "user threads kernel threads", "Threads share an address space. User threads kernel threads differ in who schedules them and what blocks."},
	{"CPU Scheduling", "round robin quantum", "The scheduler picks the next runnable process. Round robin quantum length trades response time against context switch overhead."},
	{"Synchronization", "mutex semaphore", "Critical sections need mutual exclusion. A mutex semaphore pair guards shared counters and bounded buffers."},
	{"Deadlock", "circular wait", "Deadlock needs four conditions. Circular wait is broken by ordering lock acquisition."},
	{"Virtual Memory", "page table translation", "Virtual memory gives each process its own address space. Page table translation maps virtual pages to physical frames."},
	{"TLB", "translation lookaside buffer", "Address translation is cached. The translation lookaside buffer holds recent page table entries."},
	{"Page Replacement", "least recently used eviction", "When memory is full a page must go. Least recently used eviction approximates the optimal policy."},
	{"File Systems", "inode block pointers", "Files are stored as blocks on disk. Inode block pointers locate direct and indirect data blocks."},
	{"Journaling", "write ahead journal", "Crashes can corrupt metadata. A write ahead journal records intent before updating the disk."},
	{"Linear Regression", "least squares fit", "Linear regression predicts a continuous target. The least squares fit minimizes the sum of squared residuals."},
	{"Gradient Descent", "learning rate step", "Gradient descent follows the negative gradient. The learning rate step size controls convergence speed."},
	{"Logistic Regression", "sigmoid decision boundary", "Logistic regression models class probability. The sigmoid decision boundary is linear in the features."},
	{"Bayes Rule", "posterior prior likelihood", "Bayes rule updates beliefs with evidence. The posterior prior likelihood relation is posterior proportional to likelihood times prior."},
	{"Naive Bayes", "conditional independence assumption", "Naive Bayes classifies text quickly. The conditional independence assumption factorizes the likelihood."},
	{"Decision Trees", "information gain split", "Decision trees split on features. Information gain split selection uses entropy reduction."},
	{"Overfitting", "regularization penalty", "Complex models memorize noise. A regularization penalty on weights improves generalization."},
	{"Cross Validation", "k fold validation", "Held out data estimates error. K fold validation averages error over folds."},
	{"Neural Networks", "backpropagation chain rule", "Neural networks stack layers of units. Backpropagation chain rule computes gradients layer by layer."},
	{"Convolutional Networks", "convolution kernel pooling", "CNNs exploit spatial structure. Convolution kernel pooling layers reduce resolution."},
	{"Sorting", "merge sort divide", "Sorting orders a sequence. Merge sort divide and conquer runs in n log n time."},
	{"Hash Tables", "open addressing probing", "Hash tables map keys to buckets. Open addressing probing resolves collisions in place."},
	{"Binary Search Trees", "tree rotation balance", "Search trees keep keys ordered. Tree rotation balance keeps height logarithmic."},
	{"Graphs", "breadth first search", "Graphs model relations. Breadth first search finds shortest paths in unweighted graphs."},
	{"Shortest Paths", "Dijkstra priority queue", "Weighted graphs need more care. Dijkstra priority queue extraction settles the nearest vertex."},
	{"Dynamic Programming", "overlapping subproblems memoization", "Some recursions repeat work. Overlapping subproblems memoization stores answers in a table."},
	{"Complexity", "big O notation", "Algorithms are compared by growth rate. Big O notation bounds running time from above."},
	{"Relational Model", "primary key foreign key", "Relations are sets of tuples. Primary key foreign key constraints link tables."},
	{"SQL Joins", "inner join outer join", "Queries combine tables. Inner join outer join differ in unmatched rows."},
	{"Normalization", "third normal form", "Redundancy causes anomalies. Third normal form removes transitive dependencies."},
	{"Transactions", "ACID isolation level", "Transactions group operations. ACID isolation level choices allow or prevent anomalies."},
	{"Indexing", "B tree index", "Indexes speed up lookups. A B tree index keeps keys sorted on disk pages."},
	{"TCP", "three way handshake", "TCP provides reliable streams. The three way handshake establishes sequence numbers."},
	{"Congestion Control", "slow start window", "Senders must not overload the network. Slow start window growth is exponential until loss."},
	{"IP Routing", "longest prefix match", "Routers forward packets by destination. Longest prefix match selects the forwarding entry."},
	{"DNS", "recursive resolver", "Names map to addresses. A recursive resolver walks from the root servers down."},
	{"Compilers", "lexer parser pipeline", "Compilers translate source programs. The lexer parser pipeline turns characters into tokens and trees."},
	{"Type Checking", "static type inference", "Types catch errors early. Static type inference derives types without annotations."},
	{"Garbage Collection", "mark and sweep", "Memory is reclaimed automatically. Mark and sweep traces reachable objects from roots."},
	{"Recursion", "base case recursive call", "Functions may call themselves. Every base case recursive call pair must make progress."},
}

// BuildCorpus returns one lecture per topic and one query per lecture.
func BuildCorpus() *Corpus {
	c := &Corpus{}
	for i, tp := range topics {
		name := fmt.Sprintf("lecture-%02d", i+1)
		c.Lectures = append(c.Lectures, Lecture{Name: name, Title: tp.title, Content: tp.content})
		c.Cases = append(c.Cases, QueryCase{Query: tp.phrase, Expected: name})
	}
	return c
}

// Text is the document body written to disk: title, blank line, content.
func (l Lecture) Text() string {
	return l.Title + "\n\n" + l.Content
}

func containsPhrase(l Lecture, phrase string) bool {
	return strings.Contains(strings.ToLower(l.Text()), strings.ToLower(phrase))
}
