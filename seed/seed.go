// Package seed loads the bundled job-description corpus into a running API
// instance through its public endpoints.
package seed

// Document is one entry of the bundled corpus.
type Document struct {
	Collection  string `json:"collection"`
	DocumentID  string `json:"documentId"`
	TextContent string `json:"textContent"`
}

// Jobs returns the job-description corpus used to seed fresh environments.
func Jobs() []Document {
	return []Document{
		{
			Collection:  "jobs",
			DocumentID:  "job_101",
			TextContent: "Senior Backend Engineer specializing in Golang (Go) to design, develop, and maintain high-performance microservices. Responsibilities include building scalable APIs, optimizing database queries with PostgreSQL, and deploying services on Kubernetes. Must have strong experience with gRPC, Docker, and CI/CD pipelines.",
		},
		{
			Collection:  "jobs",
			DocumentID:  "job_102",
			TextContent: "Experienced Frontend Developer proficient in React.js and Next.js to build modern, responsive user interfaces. You will work with TypeScript to ensure type safety and collaborate with UX/UI designers to create a seamless user experience. Experience with state management libraries like Redux or Zustand is required.",
		},
		{
			Collection:  "jobs",
			DocumentID:  "job_103",
			TextContent: "DevOps Engineer with deep knowledge of AWS cloud infrastructure and container orchestration. You will manage our production environment using Kubernetes (EKS), implement infrastructure as code with Terraform, and maintain our monitoring stack with Prometheus and Grafana. Scripting skills in Python or Bash are essential.",
		},
		{
			Collection:  "jobs",
			DocumentID:  "job_104",
			TextContent: "Data Scientist skilled in machine learning and Python to analyze large datasets and build predictive models. You should have a strong background in statistics and experience with ML frameworks like Scikit-learn, TensorFlow, or PyTorch. Familiarity with data processing tools like Pandas and Spark is a must.",
		},
		{
			Collection:  "jobs",
			DocumentID:  "job_105",
			TextContent: "Versatile Full-Stack Developer to work on both our Node.js backend and React frontend. You will be responsible for developing end-to-end features, writing RESTful APIs with Express.js, and managing our MongoDB database. This role requires strong problem-solving skills and the ability to work across the entire stack.",
		},
		{
			Collection:  "jobs",
			DocumentID:  "job_106",
			TextContent: "Seeking a motivated Junior Golang Developer eager to learn and contribute to our backend services. You will work alongside senior engineers to write clean, efficient Go code, develop unit tests, and learn about microservice architecture. A basic understanding of APIs and databases is required.",
		},
		{
			Collection:  "jobs",
			DocumentID:  "job_107",
			TextContent: "Mobile Developer with experience in React Native to build cross-platform applications for iOS and Android. You will be responsible for implementing new features, optimizing app performance, and integrating with native device APIs. Experience with mobile deployment to the App Store and Google Play is a plus.",
		},
		{
			Collection:  "jobs",
			DocumentID:  "job_108",
			TextContent: "Cloud Security Engineer to ensure the security and compliance of our AWS and Kubernetes environments. Responsibilities include vulnerability scanning, identity and access management (IAM), and implementing security best practices for our cloud infrastructure. Certifications like CISSP or AWS Security Specialty are highly valued.",
		},
		{
			Collection:  "jobs",
			DocumentID:  "job_109",
			TextContent: "AI Engineer focused on Natural Language Processing (NLP) and Large Language Models (LLMs). You will build and fine-tune models for tasks like text classification and entity extraction. Experience with Hugging Face Transformers, PyTorch, and deploying models as scalable services is required. Familiarity with vector databases like Qdrant is a bonus.",
		},
		{
			Collection:  "jobs",
			DocumentID:  "job_110",
			TextContent: "Lead Backend Engineer with a strong focus on system design and architecture. You will lead a team of Golang and Python developers, make high-level architectural decisions, and ensure the scalability and reliability of our platform. Proven experience in designing distributed systems and microservices is mandatory.",
		},
	}
}
